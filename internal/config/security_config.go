package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityReseller                      // Any valid access token
	SecurityAdmin                         // Access token with the admin role
)

// EndpointSecurityConfig maps HTTP route names to their required security level.
// Routes missing from the map default to SecurityAdmin.
var EndpointSecurityConfig = map[string]SecurityLevel{
	"Health": SecurityPublic,

	// Reseller self-service
	"GetResellerBalance": SecurityReseller,

	// Ledger mutations and reports
	"CreateSale":         SecurityAdmin,
	"CreateClearance":    SecurityAdmin,
	"ListTransactions":   SecurityAdmin,
	"GetTransaction":     SecurityAdmin,
	"EditTransaction":    SecurityAdmin,
	"DeleteTransactions": SecurityAdmin,
	"DuplicateSales":     SecurityAdmin,
	"ImportRows":         SecurityAdmin,
	"ImportCSV":          SecurityAdmin,
	"ExportCSV":          SecurityAdmin,

	// Undo history
	"Undo":       SecurityAdmin,
	"Redo":       SecurityAdmin,
	"GetHistory": SecurityAdmin,
}

// RequiredSecurityLevel returns the level for a route name.
func RequiredSecurityLevel(routeName string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[routeName]; ok {
		return level
	}
	return SecurityAdmin
}
