package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kjannette/aete-backend/internal/logging"
)

// Check names reported by Validate.
const (
	CheckExchange            = "Exchange config"
	CheckFirebaseCredentials = "Firebase credentials"
	CheckRiskLimits          = "Risk limits"
	CheckGAParams            = "GA params"
	CheckRLParams            = "RL params"
)

type Check struct {
	Name   string
	Passed bool
	Detail string
}

type ValidationReport struct {
	Checks []Check
}

// OK reports whether every check passed.
func (r *ValidationReport) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failures returns the names of failed checks in evaluation order.
func (r *ValidationReport) Failures() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Check returns the named check.
func (r *ValidationReport) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

func (r *ValidationReport) Error() string {
	var lines []string
	for _, c := range r.Checks {
		if !c.Passed {
			lines = append(lines, fmt.Sprintf("%s: %s", c.Name, c.Detail))
		}
	}
	return fmt.Sprintf("config validation failed:\n  %s", strings.Join(lines, "\n  "))
}

// Validate runs every named check and logs each failure. It never fails by
// itself; callers decide whether a non-OK report is fatal.
func (c *Config) Validate() *ValidationReport {
	log := logging.For("config")
	r := &ValidationReport{Checks: []Check{
		c.checkExchange(),
		c.checkCredentials(),
		c.checkRiskLimits(),
		c.checkGAParams(),
		c.checkRLParams(),
	}}
	for _, ch := range r.Checks {
		if !ch.Passed {
			log.WithField("detail", ch.Detail).Errorf("Validation failed: %s", ch.Name)
		}
	}
	return r
}

func (c *Config) checkExchange() Check {
	if c.Exchange.Name == "" {
		return Check{Name: CheckExchange, Detail: "EXCHANGE_NAME is required"}
	}
	// Live mode without keys is allowed; it only warns.
	if !c.Exchange.Sandbox && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		logging.For("config").Warnf("Live trading requires API keys for %s", c.Exchange.Name)
	}
	return Check{Name: CheckExchange, Passed: true}
}

func (c *Config) checkCredentials() Check {
	if c.StoreBackend != StoreFirestore {
		return Check{Name: CheckFirebaseCredentials, Passed: true,
			Detail: fmt.Sprintf("not required for %s store", c.StoreBackend)}
	}
	if _, err := os.Stat(c.FirebaseCredentialsPath); err != nil {
		return Check{Name: CheckFirebaseCredentials,
			Detail: fmt.Sprintf("credentials file %s: %v", c.FirebaseCredentialsPath, err)}
	}
	return Check{Name: CheckFirebaseCredentials, Passed: true}
}

func (c *Config) checkRiskLimits() Check {
	if !inUnitInterval(c.MaxPositionSize) {
		return Check{Name: CheckRiskLimits,
			Detail: fmt.Sprintf("MAX_POSITION_SIZE %v outside (0,1]", c.MaxPositionSize)}
	}
	if !inUnitInterval(c.MaxDrawdown) {
		return Check{Name: CheckRiskLimits,
			Detail: fmt.Sprintf("MAX_DRAWDOWN %v outside (0,1]", c.MaxDrawdown)}
	}
	return Check{Name: CheckRiskLimits, Passed: true}
}

func (c *Config) checkGAParams() Check {
	ga := c.GA
	switch {
	case ga.PopulationSize <= 0:
		return Check{Name: CheckGAParams, Detail: "population_size must be positive"}
	case ga.ElitismCount < 0 || ga.ElitismCount > ga.PopulationSize:
		return Check{Name: CheckGAParams,
			Detail: fmt.Sprintf("elitism_count %d outside [0,%d]", ga.ElitismCount, ga.PopulationSize)}
	case ga.MutationRate < 0 || ga.MutationRate > 1:
		return Check{Name: CheckGAParams, Detail: "mutation_rate outside [0,1]"}
	case ga.CrossoverRate < 0 || ga.CrossoverRate > 1:
		return Check{Name: CheckGAParams, Detail: "crossover_rate outside [0,1]"}
	}
	return Check{Name: CheckGAParams, Passed: true}
}

func (c *Config) checkRLParams() Check {
	if c.RL.Gamma < 0 || c.RL.Gamma > 1 {
		return Check{Name: CheckRLParams, Detail: "gamma outside [0,1]"}
	}
	return Check{Name: CheckRLParams, Passed: true}
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}
