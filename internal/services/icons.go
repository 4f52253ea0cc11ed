package services

import "fleet-map-service/internal/domain"

// DefaultPOIIcons has an icon for every known category. Unknown POIs are
// classified but not drawn unless an icon is configured for them.
func DefaultPOIIcons() domain.IconSet {
	return domain.IconSet{
		domain.CategoryFactory:     {URL: "/icons/factory.png", Color: "#8e44ad", Size: 32},
		domain.CategoryWarehouse:   {URL: "/icons/warehouse.png", Color: "#2980b9", Size: 32},
		domain.CategoryGasStation:  {URL: "/icons/gas-station.png", Color: "#c0392b", Size: 28},
		domain.CategoryMaintenance: {URL: "/icons/maintenance.png", Color: "#d35400", Size: 28},
		domain.CategoryRestArea:    {URL: "/icons/rest-area.png", Color: "#27ae60", Size: 28},
		domain.CategoryTransport:   {URL: "/icons/transport.png", Color: "#16a085", Size: 32},
	}
}

const defaultStatusColor = "#ff7f50"

var statusColors = map[domain.VehicleStatus]string{
	domain.StatusIdle:             "#95a5a6",
	domain.StatusOrderDriving:     "#3498db",
	domain.StatusLoading:          "#f39c12",
	domain.StatusTransportDriving: "#2ecc71",
	domain.StatusUnloading:        "#e74c3c",
	domain.StatusWaiting:          "#e74c3c",
	domain.StatusBreakdown:        "#e74c3c",
}

// VehicleIcon returns the marker icon for a vehicle in status.
func VehicleIcon(status domain.VehicleStatus) domain.Icon {
	color, ok := statusColors[status]
	if !ok {
		color = defaultStatusColor
	}
	return domain.Icon{URL: "/icons/truck.png", Color: color, Size: 36}
}
