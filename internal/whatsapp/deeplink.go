package whatsapp

import (
	"fmt"
	"net/url"
	"strings"
)

// ContactLink builds a wa.me deep link for the given E.164 phone number with
// an optional prefilled message. wa.me wants digits only, no plus sign.
func ContactLink(phone string, message string) string {
	digits := strings.TrimPrefix(phone, "+")
	if digits == "" {
		return ""
	}

	link := "https://wa.me/" + digits
	if message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return link
}

// RequesterGreeting is the prefilled message an agent sends when first
// contacting a requester.
func RequesterGreeting(requesterName string, parish string) string {
	return fmt.Sprintf("Hi %s, I'm a verified agent on YaadMarket reaching out about your property request in %s.", requesterName, parish)
}

// PaymentMessage is the prefilled message an agent sends to the business
// number when submitting a bank transfer proof.
func PaymentMessage(agentName string, tier string) string {
	return fmt.Sprintf("Hi, this is %s. I have made the bank transfer for the %s access plan and would like to submit my payment proof.", agentName, tier)
}
