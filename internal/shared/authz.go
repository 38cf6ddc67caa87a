package shared

// Goods receipt permissions. Inspection and inventory approval are held by different roles.
const (
	PermGRNView      = "grn.view"
	PermGRNReceive   = "grn.receive"
	PermGRNInspect   = "grn.inspect"
	PermGRNInventory = "grn.inventory"
)

// Inventory permissions.
const (
	PermInventoryView = "inventory.view"
)

// GRNScopes lists all permissions related to goods receipt.
func GRNScopes() []string {
	return []string{
		PermGRNView,
		PermGRNReceive,
		PermGRNInspect,
		PermGRNInventory,
	}
}

// AllScopes lists every permission the service checks.
func AllScopes() []string {
	return append(GRNScopes(), PermInventoryView)
}
