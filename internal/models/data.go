package models

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed classification/*.json
var classificationFS embed.FS

type domainTable struct {
	Domains []string `json:"domains"`
}

var (
	classifyOnce      sync.Once
	freeDomains       map[string]struct{}
	disposableDomains map[string]struct{}
)

func loadJSON[T any](filename string) (*T, error) {
	data, err := classificationFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	return &result, nil
}

func loadClassificationTables() {
	classifyOnce.Do(func() {
		freeDomains = make(map[string]struct{})
		disposableDomains = make(map[string]struct{})

		free, err := loadJSON[domainTable]("classification/free-domains.json")
		if err != nil {
			_ = log.Error("failed to load free domain table: %v", err)
		} else {
			for _, d := range free.Domains {
				freeDomains[strings.ToLower(d)] = struct{}{}
			}
		}

		disposable, err := loadJSON[domainTable]("classification/disposable-domains.json")
		if err != nil {
			_ = log.Error("failed to load disposable domain table: %v", err)
		} else {
			for _, d := range disposable.Domains {
				disposableDomains[strings.ToLower(d)] = struct{}{}
			}
		}
	})
}

// ClassifyDomain buckets an email domain as disposable, free or premium.
// Disposable wins when a domain appears in both tables.
func ClassifyDomain(domain string) DomainType {
	loadClassificationTables()
	d := strings.ToLower(strings.TrimSpace(domain))
	if _, ok := disposableDomains[d]; ok {
		return DomainTypeDisposable
	}
	if _, ok := freeDomains[d]; ok {
		return DomainTypeFree
	}
	return DomainTypePremium
}
