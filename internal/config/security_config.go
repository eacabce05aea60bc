// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic     SecurityLevel = iota // No authentication
	SecurityStaff                           // Any agent or supervisor token
	SecurityAgent                           // Agent token required
	SecuritySupervisor                      // Supervisor token required
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Operations - Public
	"healthz": SecurityPublic,
	"metrics": SecurityPublic,

	// Offer lifecycle - Agent
	"createOffer":    SecurityAgent,
	"sendOffer":      SecurityAgent,
	"recordResponse": SecurityAgent,

	// Offer lifecycle - Supervisor
	"supervisorDecision": SecuritySupervisor,
	"expireDueOffers":    SecuritySupervisor,
	"pendingReviews":     SecuritySupervisor,

	// Either role
	"cancelOffer":     SecurityStaff,
	"getOffer":        SecurityStaff,
	"offerLetter":     SecurityStaff,
	"loanHistory":     SecurityStaff,
	"historyWorkbook": SecurityStaff,
	"summary":         SecurityStaff,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecuritySupervisor
}
