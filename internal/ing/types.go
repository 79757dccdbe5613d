package ing

const (
	unitPiece     = "szt."
	taxStakeNP    = "NP"
	paymentOther  = "OTHER"
	placeholder   = "-"
	shippingCode  = placeholder
	shippingEntry = "SHIPPING"
)

type Buyer struct {
	Email          string `json:"email"`
	FullName       string `json:"fullName"`
	AddressStreet  string `json:"addressStreet"`
	City           string `json:"city"`
	PostCode       string `json:"postCode"`
	CountryCode    string `json:"countryCode"`
	TaxNumber      string `json:"taxNumber"`
	TaxCountryCode string `json:"taxCountryCode"`
}

type Position struct {
	Name     string  `json:"name"`
	Code     string  `json:"code"`
	Quantity int     `json:"quantity"`
	Unit     string  `json:"unit"`
	Net      float64 `json:"net"`
	Gross    float64 `json:"gross"`
	TaxStake string  `json:"taxStake"`
}

type Payment struct {
	Method       string  `json:"method"`
	DeadlineDate string  `json:"deadlineDate"`
	PaidAmount   float64 `json:"paidAmount"`
}

type Currency struct {
	Code string  `json:"code"`
	Rate float64 `json:"rate"`
}

// Invoice is the create-invoice request body.
type Invoice struct {
	IssuedGross bool       `json:"issuedGross,omitempty"`
	IssuePlace  string     `json:"issuePlace,omitempty"`
	IssueDate   string     `json:"issueDate,omitempty"`
	ServiceDate string     `json:"serviceDate,omitempty"`
	Description string     `json:"description,omitempty"`
	Currency    *Currency  `json:"currency,omitempty"`
	Payment     Payment    `json:"payment"`
	Buyer       Buyer      `json:"buyer"`
	Positions   []Position `json:"positions"`
}

type createInvoiceResponse struct {
	ID int64 `json:"id"`
}
