package model

import "github.com/pots-hq/pots/internal/coreapi"

// CatalogInput is the set of facts about a user/pot pairing that decides
// which steps a session traverses.
type CatalogInput struct {
	PotExists            bool
	UserExists           bool
	VerificationRequired bool
	SingleOffer          bool
	TermsAccepted        bool
	BankLinked           bool
	PotActive            bool
}

// BuildCatalog computes the ordered step list for a session. It is a pure
// function of its input: the same facts always produce the same catalog.
// Verification can appear after either the first-time-creation branch or the
// re-verification branch; the two are mutually exclusive because one requires
// the user not to exist and the other requires it to exist.
func BuildCatalog(in CatalogInput) []Step {
	var steps []Step

	if !in.PotExists {
		steps = append(steps, StepWelcome)
	}

	if !in.UserExists {
		steps = append(steps, StepPersonalDetails, StepAddress, StepFinancialDetails, StepVerification)
	}

	if in.UserExists && in.VerificationRequired {
		steps = append(steps, StepContinueVerification, StepVerification)
	}

	if !in.PotExists {
		if !in.SingleOffer {
			steps = append(steps, StepOfferSelection)
		}
		steps = append(steps, StepOfferReview)
	}

	if !in.TermsAccepted {
		steps = append(steps, StepAcceptTerms)
	}

	if !in.BankLinked {
		steps = append(steps, StepBankAccountLinkRequest, StepBankSelection, StepBankAuth)
	}

	if !in.PotActive {
		steps = append(steps, StepPaymentRequest, StepPaymentAuth)
	}

	steps = append(steps, StepComplete)

	return steps
}

// CatalogInputFromSnapshot derives the catalog facts from a freshly fetched
// view of the user, their pot for this factory (if any), their linked bank
// account and the factory itself.
func CatalogInputFromSnapshot(
	user *coreapi.UserDetails,
	pot *coreapi.Pot,
	bankAccount *coreapi.BankAccount,
	potFactory *coreapi.PotFactoryDetails,
) CatalogInput {
	return CatalogInput{
		PotExists:            pot != nil,
		UserExists:           user != nil,
		VerificationRequired: user != nil && user.Status <= coreapi.UserVerificationInProgress,
		SingleOffer:          potFactory == nil || len(potFactory.Offers) <= 1,
		TermsAccepted:        pot != nil && pot.TermsAccepted,
		BankLinked:           bankAccount != nil,
		PotActive:            pot != nil && pot.Status == coreapi.PotActive,
	}
}
