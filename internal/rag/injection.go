package rag

import "strings"

var injectionKeywords = []string{
	"ignore previous",
	"system prompt",
	"developer message",
	"api key",
	"reveal",
	"password",
	"token",
	"curl",
}

// InjectionScan reports which texts look like prompt injection attempts.
type InjectionScan struct {
	HasRisk bool  `json:"has_injection_risk"`
	Flagged []int `json:"flagged_indexes"`
}

// ScanInjectionRisk flags texts containing a known injection keyword,
// case-insensitively. It is a cheap keyword check, not a classifier.
func ScanInjectionRisk(texts []string) InjectionScan {
	scan := InjectionScan{Flagged: []int{}}
	for i, text := range texts {
		lower := strings.ToLower(text)
		for _, kw := range injectionKeywords {
			if strings.Contains(lower, kw) {
				scan.Flagged = append(scan.Flagged, i)
				break
			}
		}
	}
	scan.HasRisk = len(scan.Flagged) > 0
	return scan
}
