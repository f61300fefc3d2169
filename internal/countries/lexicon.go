package countries

// defaultLexicon maps country names (and common short forms) to ISO 3166-1
// alpha-2 codes. Matching is by lowercase substring, so entries must be
// long enough not to collide with ordinary words.
var defaultLexicon = map[string]string{
	"Afghanistan":    "AF",
	"Algeria":        "DZ",
	"Argentina":      "AR",
	"Australia":      "AU",
	"Bangladesh":     "BD",
	"Belgium":        "BE",
	"Bolivia":        "BO",
	"Brazil":         "BR",
	"Burkina Faso":   "BF",
	"Cameroon":       "CM",
	"Canada":         "CA",
	"Chile":          "CL",
	"China":          "CN",
	"Colombia":       "CO",
	"Congo":          "CD",
	"Denmark":        "DK",
	"Ecuador":        "EC",
	"Egypt":          "EG",
	"Ethiopia":       "ET",
	"Finland":        "FI",
	"France":         "FR",
	"Germany":        "DE",
	"Ghana":          "GH",
	"Greece":         "GR",
	"Haiti":          "HT",
	"India":          "IN",
	"Indonesia":      "ID",
	"Iran":           "IR",
	"Iraq":           "IQ",
	"Israel":         "IL",
	"Italy":          "IT",
	"Japan":          "JP",
	"Kenya":          "KE",
	"Lebanon":        "LB",
	"Libya":          "LY",
	"Madagascar":     "MG",
	"Malaysia":       "MY",
	"Mali":           "ML",
	"Mexico":         "MX",
	"Morocco":        "MA",
	"Mozambique":     "MZ",
	"Myanmar":        "MM",
	"Nepal":          "NP",
	"Netherlands":    "NL",
	"New Zealand":    "NZ",
	"Niger":          "NE",
	"Nigeria":        "NG",
	"North Korea":    "KP",
	"Norway":         "NO",
	"Pakistan":       "PK",
	"Peru":           "PE",
	"Philippines":    "PH",
	"Poland":         "PL",
	"Portugal":       "PT",
	"Russia":         "RU",
	"Saudi Arabia":   "SA",
	"Senegal":        "SN",
	"Somalia":        "SO",
	"South Africa":   "ZA",
	"South Korea":    "KR",
	"South Sudan":    "SS",
	"Spain":          "ES",
	"Sri Lanka":      "LK",
	"Sudan":          "SD",
	"Sweden":         "SE",
	"Switzerland":    "CH",
	"Syria":          "SY",
	"Taiwan":         "TW",
	"Tanzania":       "TZ",
	"Thailand":       "TH",
	"Tunisia":        "TN",
	"Turkey":         "TR",
	"Uganda":         "UG",
	"Ukraine":        "UA",
	"United Kingdom": "GB",
	"United States":  "US",
	"Venezuela":      "VE",
	"Vietnam":        "VN",
	"Yemen":          "YE",
	"Zimbabwe":       "ZW",
}
