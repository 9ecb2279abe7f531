package models

// Health represents the liveness or readiness of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the detailed status shown to operators.
type SystemStatus struct {
	Status      HealthStatus      `json:"status"`
	Time        Timestamp         `json:"time"`
	Catalogue   CatalogueStatus   `json:"catalogue"`
	Barriers    int               `json:"barriers"`
	Subsystems  []SubsystemStatus `json:"subsystems"`
	Providers   []ProviderStatus  `json:"providers"`
	ActiveFlags []string          `json:"activeFlags,omitempty"`
}

// CatalogueStatus summarises the loaded hazard catalogue.
type CatalogueStatus struct {
	Source   string `json:"source"`
	Hazards  int    `json:"hazards"`
	Profiles int    `json:"profiles"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       string       `json:"message,omitempty"`
}
