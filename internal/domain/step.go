/**
 * @description
 * This file defines the canonical onboarding step sequence. Steps are an
 * ordered int enum; the per-step lookup tables (display labels, estimated
 * minutes) are fixed-size arrays indexed by the enum, so adding a step
 * without extending every table fails to compile instead of falling through
 * a map lookup at runtime.
 *
 * @dependencies
 * - encoding/json, fmt: Standard Go libraries.
 */

package domain

import (
	"encoding/json"
	"fmt"
)

// Step is one stage in the fixed account-setup sequence.
type Step int

const (
	StepWelcome Step = iota
	StepConsents
	StepProfile
	StepKYC
	StepWallet
	StepBroker
	StepSecurity
	StepPreferences
	StepTour
	StepDone

	stepCount
)

// StepOrder is the canonical, totally ordered onboarding sequence.
var StepOrder = [stepCount]Step{
	StepWelcome,
	StepConsents,
	StepProfile,
	StepKYC,
	StepWallet,
	StepBroker,
	StepSecurity,
	StepPreferences,
	StepTour,
	StepDone,
}

var stepNames = [stepCount]string{
	StepWelcome:     "welcome",
	StepConsents:    "consents",
	StepProfile:     "profile",
	StepKYC:         "kyc",
	StepWallet:      "wallet",
	StepBroker:      "broker",
	StepSecurity:    "security",
	StepPreferences: "preferences",
	StepTour:        "tour",
	StepDone:        "done",
}

// StepMinutes is the fixed per-step time estimate used by the progress
// projection. It reflects typical completion times, not measured history.
var StepMinutes = [stepCount]int{
	StepWelcome:     1,
	StepConsents:    2,
	StepProfile:     3,
	StepKYC:         5,
	StepWallet:      2,
	StepBroker:      3,
	StepSecurity:    3,
	StepPreferences: 2,
	StepTour:        5,
	StepDone:        0,
}

var stepTitles = [stepCount]string{
	StepWelcome:     "Welcome",
	StepConsents:    "Agreements",
	StepProfile:     "Personal details",
	StepKYC:         "Identity verification",
	StepWallet:      "Funding wallet",
	StepBroker:      "Brokerage account",
	StepSecurity:    "Account security",
	StepPreferences: "Preferences",
	StepTour:        "Platform tour",
	StepDone:        "All set",
}

var stepDescriptions = [stepCount]string{
	StepWelcome:     "Get started with your new account",
	StepConsents:    "Review and accept the platform agreements",
	StepProfile:     "Tell us who you are",
	StepKYC:         "Verify your identity with a government document",
	StepWallet:      "Link a wallet to fund your account",
	StepBroker:      "Open your brokerage sub-account",
	StepSecurity:    "Protect your account with two-factor authentication",
	StepPreferences: "Choose how we keep you informed",
	StepTour:        "Take a quick tour of the platform",
	StepDone:        "Your account is ready to trade",
}

// requiredSteps marks the steps counted toward the stricter required-only
// completion percentage.
var requiredSteps = [stepCount]bool{
	StepWelcome:  true,
	StepConsents: true,
	StepProfile:  true,
	StepKYC:      true,
}

// Valid reports whether s is a member of the canonical sequence.
func (s Step) Valid() bool {
	return s >= StepWelcome && s < stepCount
}

// Index returns the position of s in StepOrder.
func (s Step) Index() int {
	return int(s)
}

// Next returns the step after s, or false when s is the terminal step.
func (s Step) Next() (Step, bool) {
	if s >= stepCount-1 {
		return 0, false
	}
	return s + 1, true
}

// Previous returns the step before s, or false when s is the first step.
func (s Step) Previous() (Step, bool) {
	if s <= StepWelcome {
		return 0, false
	}
	return s - 1, true
}

// Required reports whether s counts toward the required-only completion
// percentage.
func (s Step) Required() bool {
	if !s.Valid() {
		return false
	}
	return requiredSteps[s]
}

// Minutes returns the fixed time estimate for s.
func (s Step) Minutes() int {
	if !s.Valid() {
		return 0
	}
	return StepMinutes[s]
}

// Title returns the UI label for s.
func (s Step) Title() string {
	if !s.Valid() {
		return ""
	}
	return stepTitles[s]
}

// Description returns the UI blurb for s.
func (s Step) Description() string {
	if !s.Valid() {
		return ""
	}
	return stepDescriptions[s]
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep resolves a wire-format step name.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown onboarding step %q", name)
}

// MarshalJSON encodes the step by its wire name.
func (s Step) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid step %d", int(s))
	}
	return json.Marshal(stepNames[s])
}

// UnmarshalJSON decodes a step from its wire name.
func (s *Step) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStep(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
