package feature

import (
	"strings"

	"github.com/sells-group/deal-scout/internal/model"
)

// Industry groups produced by ConsolidateIndustry.
var IndustryGroups = []string{
	"Fintech", "Healthcare", "E-commerce", "SaaS", "AI/ML", "Biotech",
	"EdTech", "Gaming", "Cybersecurity", "IoT", "Blockchain", "Marketing", "Other",
}

// Regions produced by MapRegion.
var Regions = []string{
	"North America", "Europe", "Asia", "South America", "Africa", "Oceania", "Middle East", "Other",
}

type keywordGroup struct {
	label    string
	keywords []string
}

// Order matters: the first group with a substring hit wins.
var industryKeywords = []keywordGroup{
	{"Fintech", []string{"fintech", "finance", "payment", "payments", "remittance", "bank", "insurtech", "lending", "wealth"}},
	{"Healthcare", []string{"health", "med", "medtech", "clinic", "care", "pharma-care"}},
	{"E-commerce", []string{"e-commerce", "ecommerce", "commerce", "retail", "marketplace", "shop", "shopping"}},
	{"SaaS", []string{"saas", "software", "enterprise software", "b2b software", "crm", "erp", "collaboration"}},
	{"AI/ML", []string{"ai", "artificial intelligence", "machine learning", "ml", "deep learning", "genai", "computer vision", "nlp"}},
	{"Biotech", []string{"biotech", "bio", "genomic", "genomics", "drug", "therapeutic", "life science"}},
	{"EdTech", []string{"edtech", "education", "learning", "tutoring", "mooc"}},
	{"Gaming", []string{"gaming", "games", "game", "esports"}},
	{"Cybersecurity", []string{"cyber", "security", "infosec", "endpoint", "siem"}},
	{"IoT", []string{"iot", "internet of things", "smart home", "embedded", "hardware", "sensor"}},
	{"Blockchain", []string{"blockchain", "crypto", "web3", "defi", "nft"}},
	{"Marketing", []string{"marketing", "adtech", "advertis", "martech", "growth"}},
}

var industryDirect = map[string]string{
	"technology":   "SaaS",
	"software":     "SaaS",
	"mobile":       "SaaS",
	"social media": "Marketing",
	"cleantech":    "Other",
	"green tech":   "Other",
	"agritech":     "Other",
	"proptech":     "Other",
}

// ConsolidateIndustry maps a free-text industry into one of IndustryGroups.
func ConsolidateIndustry(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "Other"
	}
	for _, g := range industryKeywords {
		for _, kw := range g.keywords {
			if strings.Contains(s, kw) {
				return g.label
			}
		}
	}
	if label, ok := industryDirect[s]; ok {
		return label
	}
	return "Other"
}

func setOf(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

type regionCodes struct {
	region string
	codes  map[string]struct{}
}

// Central America rolls into North America; Russia into Europe; Turkey and
// Jordan into Middle East.
var regionTable = []regionCodes{
	{"North America", setOf(
		"US", "USA", "UNITED STATES", "CAN", "CA", "CANADA", "MEX", "MX", "MEXICO",
		"CRI", "COSTA RICA", "PAN", "PANAMA",
	)},
	{"Europe", setOf(
		"GB", "GBR", "UK", "UNITED KINGDOM", "ENG", "DE", "DEU", "GERMANY", "FR", "FRA", "FRANCE",
		"ES", "ESP", "SPAIN", "IT", "ITA", "ITALY", "NL", "NLD", "NETHERLANDS", "SE", "SWE", "SWEDEN",
		"DNK", "DENMARK", "IRL", "IRELAND", "CHE", "SWITZERLAND", "BEL", "BELGIUM", "FIN", "FINLAND",
		"LTU", "LITHUANIA", "NOR", "NORWAY", "PRT", "PORTUGAL", "POL", "POLAND",
		"CZE", "CZECHIA", "CZECH REPUBLIC", "ROM", "ROU", "ROMANIA", "AUT", "AUSTRIA",
		"EST", "ESTONIA", "HRV", "CROATIA", "HUN", "HUNGARY", "BGR", "BULGARIA", "LVA", "LATVIA",
		"ISL", "ICELAND", "UKR", "UKRAINE", "RUS", "RUSSIA",
	)},
	{"Asia", setOf(
		"CN", "CHN", "CHINA", "IN", "IND", "INDIA", "JP", "JPN", "JAPAN", "SG", "SGP", "SINGAPORE",
		"KR", "KOR", "SOUTH KOREA", "KOREA, REPUBLIC OF", "HKG", "HONG KONG", "TWN", "TAIWAN",
		"THA", "THAILAND", "PHL", "PHILIPPINES", "VNM", "VIETNAM", "IDN", "INDONESIA", "KHM", "CAMBODIA",
	)},
	{"South America", setOf(
		"BR", "BRA", "BRAZIL", "AR", "ARG", "ARGENTINA", "CL", "CHL", "CHILE",
		"PER", "PERU", "URY", "URUGUAY", "COL", "COLOMBIA",
	)},
	{"Africa", setOf(
		"ZA", "ZAF", "SOUTH AFRICA", "NG", "NGA", "NIGERIA", "EG", "EGY", "EGYPT",
		"KE", "KEN", "KENYA", "GHA", "GHANA", "BWA", "BOTSWANA",
	)},
	{"Oceania", setOf("AU", "AUS", "AUSTRALIA", "NZ", "NZL", "NEW ZEALAND")},
	{"Middle East", setOf(
		"AE", "ARE", "UAE", "UNITED ARAB EMIRATES", "SA", "SAU", "SAUDI ARABIA",
		"IL", "ISR", "ISRAEL", "TUR", "TURKEY", "JOR", "JORDAN",
	)},
}

var cityRegions = map[string]string{
	"san francisco": "North America",
	"new york":      "North America",
	"boston":        "North America",
	"los angeles":   "North America",
	"seattle":       "North America",
	"austin":        "North America",
	"toronto":       "North America",
	"london":        "Europe",
	"berlin":        "Europe",
	"paris":         "Europe",
	"amsterdam":     "Europe",
	"stockholm":     "Europe",
	"singapore":     "Asia",
	"tokyo":         "Asia",
	"bangalore":     "Asia",
	"bengaluru":     "Asia",
	"beijing":       "Asia",
	"shanghai":      "Asia",
	"sydney":        "Oceania",
	"melbourne":     "Oceania",
	"tel aviv":      "Middle East",
	"dubai":         "Middle East",
	"abu dhabi":     "Middle East",
}

// MapRegion maps a country code, country name, or well-known city to one of Regions.
func MapRegion(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "Other"
	}
	up := strings.ToUpper(s)
	for _, rc := range regionTable {
		if _, ok := rc.codes[up]; ok {
			return rc.region
		}
	}
	if region, ok := cityRegions[strings.ToLower(s)]; ok {
		return region
	}
	return "Other"
}

// Consolidate fills the derived IndustryGroup and Region attributes in place.
// Already-populated values are kept.
func Consolidate(c *model.Company) {
	if c.IndustryGroup == "" {
		c.IndustryGroup = ConsolidateIndustry(c.Industry)
	}
	if c.Region == "" {
		c.Region = MapRegion(c.Location)
	}
}
