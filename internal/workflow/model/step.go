package model

import "fmt"

// Step is one stage of the onboarding workflow. The enumeration is totally
// ordered; which subset a session traverses is decided once, at session
// start, by BuildCatalog.
type Step int

const (
	StepWelcome Step = iota
	StepPersonalDetails
	StepAddress
	StepFinancialDetails
	StepContinueVerification
	StepVerification
	StepOfferSelection
	StepOfferReview
	StepAcceptTerms
	StepBankAccountLinkRequest
	StepBankSelection
	StepBankAuth
	StepPaymentRequest
	StepPaymentAuth
	StepComplete
)

var stepNames = map[Step]string{
	StepWelcome:                "Welcome",
	StepPersonalDetails:        "PersonalDetails",
	StepAddress:                "Address",
	StepFinancialDetails:       "FinancialDetails",
	StepContinueVerification:   "ContinueVerification",
	StepVerification:           "Verification",
	StepOfferSelection:         "OfferSelection",
	StepOfferReview:            "OfferReview",
	StepAcceptTerms:            "AcceptTerms",
	StepBankAccountLinkRequest: "BankAccountLinkRequest",
	StepBankSelection:          "BankSelection",
	StepBankAuth:               "BankAuth",
	StepPaymentRequest:         "PaymentRequest",
	StepPaymentAuth:            "PaymentAuth",
	StepComplete:               "Complete",
}

var stepsByName = func() map[string]Step {
	m := make(map[string]Step, len(stepNames))
	for step, name := range stepNames {
		m[name] = step
	}
	return m
}()

// AllSteps lists every workflow step in catalog order.
var AllSteps = []Step{
	StepWelcome,
	StepPersonalDetails,
	StepAddress,
	StepFinancialDetails,
	StepContinueVerification,
	StepVerification,
	StepOfferSelection,
	StepOfferReview,
	StepAcceptTerms,
	StepBankAccountLinkRequest,
	StepBankSelection,
	StepBankAuth,
	StepPaymentRequest,
	StepPaymentAuth,
	StepComplete,
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// IsValid reports whether s is one of the declared steps.
func (s Step) IsValid() bool {
	_, ok := stepNames[s]
	return ok
}

// StepFromName resolves a step by its wire name.
func StepFromName(name string) (Step, error) {
	step, ok := stepsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown workflow step: %q", name)
	}
	return step, nil
}

// MarshalText encodes the step by name, so steps serialize as readable
// strings in JSON bodies and persisted state blobs.
func (s Step) MarshalText() ([]byte, error) {
	name, ok := stepNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown workflow step %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a step from its name.
func (s *Step) UnmarshalText(text []byte) error {
	step, err := StepFromName(string(text))
	if err != nil {
		return err
	}
	*s = step
	return nil
}
