package classify

// Category names form a closed set of topical domains. DefaultCategory is
// assigned when no lexicon scores a hit.
const DefaultCategory = "Society"

// categoryLexicons maps each category to its keyword lexicon. Scoring
// counts case-insensitive occurrences in the combined title and body.
var categoryLexicons = map[string][]string{
	"Politics": {
		"election", "parliament", "government", "minister", "president",
		"coup", "sanction", "diplomat", "treaty", "referendum", "senate",
		"legislation", "opposition party",
	},
	"Economy": {
		"inflation", "economy", "market", "trade", "currency", "recession",
		"unemployment", "gdp", "stock", "central bank", "export", "import",
		"tariff",
	},
	"Security": {
		"military", "attack", "troops", "weapon", "armed", "insurgent",
		"airstrike", "terror", "hostage", "kidnap", "militia", "ceasefire",
		"explosion", "shooting",
	},
	"Environment": {
		"flood", "earthquake", "hurricane", "wildfire", "drought", "storm",
		"cyclone", "landslide", "tsunami", "climate", "eruption", "heatwave",
	},
	"Health": {
		"outbreak", "epidemic", "pandemic", "virus", "disease", "vaccine",
		"cholera", "malaria", "hospital", "infection", "quarantine", "ebola",
	},
	"Technology": {
		"cyber", "hack", "malware", "ransomware", "data breach", "software",
		"satellite", "artificial intelligence", "telecom", "outage",
	},
	"Society": {
		"protest", "strike", "riot", "refugee", "migration", "famine",
		"displaced", "humanitarian", "unrest", "demonstration", "curfew",
	},
}

// ThreatTypeNone marks the absence of a detected threat.
const ThreatTypeNone = "none"

// threatLexicons maps each threat type to its keyword lexicon. The best
// scoring type wins; a zero best score means ThreatTypeNone.
var threatLexicons = map[string][]string{
	"armed-conflict": {
		"war", "airstrike", "shelling", "offensive", "troops", "frontline",
		"artillery", "invasion", "ceasefire violation",
	},
	"terrorism": {
		"terrorist", "suicide bomb", "bombing", "extremist", "hostage",
		"car bomb", "ied",
	},
	"civil-unrest": {
		"protest", "riot", "clashes", "demonstration", "looting", "curfew",
		"tear gas", "unrest",
	},
	"flood": {
		"flood", "flooding", "flash flood", "river burst", "inundated",
		"submerged",
	},
	"earthquake": {
		"earthquake", "quake", "aftershock", "seismic", "tremor", "magnitude",
	},
	"epidemic": {
		"outbreak", "epidemic", "pandemic", "cholera", "ebola", "infections",
		"quarantine", "contagion",
	},
	"cyber-attack": {
		"cyberattack", "cyber attack", "ransomware", "malware", "data breach",
		"hacked", "phishing", "ddos",
	},
}

// urgencyKeywords raise the threat level when present alongside a detected
// threat type.
var urgencyKeywords = []string{
	"breaking", "urgent", "emergency", "evacuate", "evacuation", "killed",
	"dead", "deaths", "casualties", "critical", "catastrophic", "thousands",
	"state of emergency",
}
