package config

// GeospatialConfig holds the geospatial query service configuration
type GeospatialConfig struct {
	// URL of an external geospatial service. Empty means the embedded
	// spatial database answers queries instead.
	URL string `mapstructure:"url" validate:"omitempty,url"`

	// Reverse-geocode search radii in meters
	HighwayRadiusMeters float64 `mapstructure:"highway_radius_meters" validate:"min=0"`
	POIRadiusMeters     float64 `mapstructure:"poi_radius_meters" validate:"min=0"`
}
