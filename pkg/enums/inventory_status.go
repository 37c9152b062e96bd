package enums

// InventoryStatus marks whether a component can currently be sold.
type InventoryStatus string

const (
	InventoryStatusActive       InventoryStatus = "active"
	InventoryStatusInactive     InventoryStatus = "inactive"
	InventoryStatusDiscontinued InventoryStatus = "discontinued"
)
