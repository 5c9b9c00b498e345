package coreapi

import "time"

// UserStatus mirrors the core platform's user lifecycle.
type UserStatus int

const (
	UserDraft UserStatus = iota
	UserReadyToVerify
	UserVerificationInProgress
	UserVerified
	UserRejected
	UserActive
	UserReadyToDeposit
	UserSuspended
	UserInactive
	UserArchived
)

// PotStatus mirrors the core platform's pot lifecycle.
type PotStatus int

const (
	PotDraft PotStatus = iota
	PotReadyToDeposit
	PotDepositInitiated
	PotDepositFailed
	PotDepositCompleted
	PotWithdrawalInitiated
	PotWithdrawalCompleted
	PotWithdrawalFailed
	PotActive
	PotInactive
	PotClosed
	PotAbandoned
)

// OfferType describes how often a pot factory offer recurs.
type OfferType int

const (
	OfferOneOff OfferType = iota
	OfferMonthly
	OfferQuarterly
	OfferYearly
	OfferEvergreen
)

// CardStatus mirrors the lifecycle of a reward card.
type CardStatus int

const (
	CardPending CardStatus = iota
	CardScheduled
	CardProcessing
	CardActive
	CardFrozen
	CardExpired
	CardCancelled
	CardArchived
)

// DepositStatus is the settlement state of a single deposit.
type DepositStatus int

const (
	DepositPending DepositStatus = iota
	DepositCompleted
	DepositFailed
)

// Address is a UK-format postal address.
type Address struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	PostCode     string `json:"postCode"`
	Country      string `json:"country"`
}

// UserDetails is the core platform's view of a user.
type UserDetails struct {
	ID          string     `json:"id"`
	Status      UserStatus `json:"status"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phoneNumber"`
	DOB         string     `json:"dob"`
	Address     Address    `json:"address"`
}

// BankAccount is a linked open-banking account.
type BankAccount struct {
	ID                 string     `json:"id"`
	ExternalID         string     `json:"externalId"`
	Name               string     `json:"name"`
	AccountNumber      string     `json:"accountNumber"`
	SortCode           string     `json:"sortCode"`
	ConsentTokenExpiry *time.Time `json:"consentTokenExpiry,omitempty"`
}

// Category groups pot factories by merchant vertical.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PotFactoryOffer is one deposit/price pairing a factory makes available.
type PotFactoryOffer struct {
	ID                string     `json:"id"`
	PotFactoryID      string     `json:"potFactoryId"`
	DepositAmount     float64    `json:"depositAmount"`
	Price             float64    `json:"price"`
	Type              OfferType  `json:"type"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
	IsNewMerchantUser bool       `json:"isNewMerchantUser,omitempty"`
}

// PotFactoryDetails is a merchant offer template users create pots from.
type PotFactoryDetails struct {
	ID                            string            `json:"id"`
	DisplayName                   string            `json:"displayName"`
	Code                          string            `json:"code"`
	URL                           string            `json:"url"`
	Category                      Category          `json:"category"`
	StartAcceptingDepositsFromUTC *time.Time        `json:"startAcceptingDepositsFromUtc,omitempty"`
	StopAcceptingDepositsFromUTC  *time.Time        `json:"stopAcceptingDepositsFromUtc,omitempty"`
	MinDeposit                    float64           `json:"minDeposit"`
	MaxDeposit                    float64           `json:"maxDeposit"`
	MinPrice                      float64           `json:"minPrice"`
	MaxPrice                      float64           `json:"maxPrice"`
	DepositPeriod                 int               `json:"depositPeriod"`
	LogoURL                       string            `json:"logoUrl,omitempty"`
	Offers                        []PotFactoryOffer `json:"offers,omitempty"`
}

// Pot is one user's savings pot created from a factory offer.
type Pot struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	PotFactoryID  string     `json:"potFactoryId"`
	Status        PotStatus  `json:"status"`
	OfferType     OfferType  `json:"offerType"`
	TermsAccepted bool       `json:"termsAccepted"`
	Name          string     `json:"name"`
	MerchantID    string     `json:"merchantId"`
	DepositAmount float64    `json:"depositAmount"`
	Price         float64    `json:"price"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}

// PaymentInstitutionCountry is one country an institution operates in.
type PaymentInstitutionCountry struct {
	DisplayName  string `json:"displayName"`
	CountryCode2 string `json:"countryCode2"`
}

// PaymentInstitution is a bank selectable for open-banking linking.
type PaymentInstitution struct {
	ID         string                      `json:"id"`
	ExternalID string                      `json:"externalId"`
	Name       string                      `json:"name"`
	FullName   string                      `json:"fullName"`
	Countries  []PaymentInstitutionCountry `json:"countries,omitempty"`
	Features   []string                    `json:"features,omitempty"`
}

// Deposit is a single deposit movement into a pot.
type Deposit struct {
	ID         string        `json:"id"`
	PotID      string        `json:"potId"`
	Status     DepositStatus `json:"status"`
	Amount     float64       `json:"amount"`
	ReceivedAt string        `json:"receivedAt"`
	FailedAt   string        `json:"failedAt,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// CardDetails is a reward card issued against a completed pot.
type CardDetails struct {
	ID         string     `json:"id"`
	PotID      string     `json:"potId"`
	ExternalID string     `json:"externalId"`
	Code       string     `json:"code"`
	ExpiryDate string     `json:"expiryDate,omitempty"`
	Status     CardStatus `json:"status"`
}

// ReferenceItem is a generic static reference data entry
// (employment status, industry, occupation, source of funds).
type ReferenceItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateUserRequest is the payload for account creation. DOB is "yyyy-MM-dd".
type CreateUserRequest struct {
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Email            string   `json:"email"`
	PhoneNumber      string   `json:"phoneNumber"`
	DOB              string   `json:"dob"`
	Address          Address  `json:"address"`
	Nationality      string   `json:"nationality"`
	EmploymentStatus string   `json:"employmentStatus"`
	Occupation       string   `json:"occupation"`
	Industry         string   `json:"industry"`
	TaxResidency     string   `json:"taxResidency"`
	TaxID            string   `json:"taxId"`
	AnnualIncome     float64  `json:"annualIncome"`
	SourceOfFunds    []string `json:"sourceOfFunds"`
}

// CreatePotRequest is the payload for creating a pot from an offer.
type CreatePotRequest struct {
	PotFactoryID      string  `json:"potFactoryId"`
	DepositAmount     float64 `json:"depositAmount"`
	Price             float64 `json:"price"`
	IsNewMerchantUser bool    `json:"isNewMerchantUser,omitempty"`
}

// CreateUserResponse carries the external id assigned to a new user.
type CreateUserResponse struct {
	UserID string `json:"userId"`
}

// CreatePotResponse carries the id assigned to a new pot.
type CreatePotResponse struct {
	PotID string `json:"potId"`
}

// ActivateCardRequest is the payload for activating a reward card.
type ActivateCardRequest struct {
	ExternalID string `json:"externalId"`
	Code       string `json:"code"`
}
