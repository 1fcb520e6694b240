package app

import (
	"clinicledger/internal/config"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/inventory"
)

// Services are the engines built on one Storage.
type Services struct {
	Inventory  *inventory.Service
	Procedures *procedure.Service
	Billing    *billing.Service
}

// NewServices builds the engines. cfg must have passed Validate.
func NewServices(st *Storage, cfg *config.Config) (*Services, error) {
	policy, err := cfg.Inventory.Policy()
	if err != nil {
		return nil, err
	}

	procedures := procedure.NewService(st.Procedures, st.TxManager, st.Audit)

	return &Services{
		Inventory: inventory.NewService(st.Items, st.Movements, st.TxManager,
			inventory.WithStockPolicy(policy),
			inventory.WithPublisher(st.Publisher),
			inventory.WithAuditor(st.Audit),
		),
		Procedures: procedures,
		Billing: billing.NewService(st.Invoices, st.Procedures, st.Numerator, st.TxManager,
			billing.WithPublisher(st.Publisher),
			billing.WithFolioConfig(cfg.Billing.Folio()),
		),
	}, nil
}
