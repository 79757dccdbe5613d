package domain

type Platform string

const (
	PlatformEbayUS Platform = "EBAY_US"
	PlatformEbayGB Platform = "EBAY_GB"
	PlatformEbayDE Platform = "EBAY_DE"
	PlatformEbayFR Platform = "EBAY_FR"
	PlatformEbayIT Platform = "EBAY_IT"
	PlatformEbayES Platform = "EBAY_ES"
	PlatformEbayPL Platform = "EBAY_PL"
	PlatformEbayCA Platform = "EBAY_CA"
	PlatformEbayAU Platform = "EBAY_AU"
	PlatformEbayCH Platform = "EBAY_CH"
)

var platforms = map[Platform]struct{}{
	PlatformEbayUS: {}, PlatformEbayGB: {}, PlatformEbayDE: {}, PlatformEbayFR: {}, PlatformEbayIT: {},
	PlatformEbayES: {}, PlatformEbayPL: {}, PlatformEbayCA: {}, PlatformEbayAU: {}, PlatformEbayCH: {},
}

func (p Platform) Valid() bool {
	_, ok := platforms[p]
	return ok
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyPLN Currency = "PLN"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyCHF Currency = "CHF"
)

// currencyPlatforms ties the settlement currency of an order to the marketplace
// whose accounting jurisdiction the invoice belongs to.
var currencyPlatforms = map[Currency]Platform{
	CurrencyUSD: PlatformEbayUS,
	CurrencyEUR: PlatformEbayDE,
	CurrencyGBP: PlatformEbayGB,
	CurrencyPLN: PlatformEbayPL,
	CurrencyCAD: PlatformEbayCA,
	CurrencyAUD: PlatformEbayAU,
	CurrencyCHF: PlatformEbayCH,
}

// PlatformForCurrency returns the platform an order settled in c is booked under.
func PlatformForCurrency(c Currency) (Platform, bool) {
	p, ok := currencyPlatforms[c]
	return p, ok
}

const CountryUS = "US"

var countryCodes = map[string]struct{}{}

func init() {
	for _, c := range []string{
		"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE", "IT",
		"LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
		"IS", "LI", "NO", "CH", "GB", "UA", "RS", "BA", "ME", "MK", "AL", "MD", "TR",
		"US", "CA", "MX", "BR", "AR", "CL", "AU", "NZ", "JP", "KR", "CN", "HK", "TW", "SG",
		"IL", "AE", "SA", "ZA", "IN", "TH", "MY", "PH",
	} {
		countryCodes[c] = struct{}{}
	}
}

// ValidCountryCode reports whether code belongs to the supported ISO 3166-1 alpha-2 set.
func ValidCountryCode(code string) bool {
	_, ok := countryCodes[code]
	return ok
}
