package persistence

import "time"

// BuildingModel represents the buildings table. Footprints collapse to their
// centroid; the count of nearby rows is the population proxy.
type BuildingModel struct {
	ID       string  `gorm:"column:id;primaryKey"`
	Lat      float64 `gorm:"column:lat;not null;index:idx_buildings_lat"`
	Lon      float64 `gorm:"column:lon;not null;index:idx_buildings_lon"`
	Kind     string  `gorm:"column:kind"`
	ParishID string  `gorm:"column:parish_id;index"`
}

func (BuildingModel) TableName() string {
	return "buildings"
}

// POIModel represents the pois table.
type POIModel struct {
	ID   string  `gorm:"column:id;primaryKey"`
	Name string  `gorm:"column:name;not null"`
	Kind string  `gorm:"column:kind"`
	Lat  float64 `gorm:"column:lat;not null;index:idx_pois_lat"`
	Lon  float64 `gorm:"column:lon;not null;index:idx_pois_lon"`
}

func (POIModel) TableName() string {
	return "pois"
}

// HighwayModel represents the highways table. Geometry is the polyline as a
// JSON array of [lon, lat] pairs.
type HighwayModel struct {
	ID       string  `gorm:"column:id;primaryKey"`
	Name     string  `gorm:"column:name;not null"`
	Kind     string  `gorm:"column:kind"`
	Geometry string  `gorm:"column:geometry;type:text;not null"`
	// Centroid columns give the bbox prefilter something to index.
	Lat float64 `gorm:"column:lat;not null;index:idx_highways_lat"`
	Lon float64 `gorm:"column:lon;not null;index:idx_highways_lon"`
}

func (HighwayModel) TableName() string {
	return "highways"
}

// ParishModel represents the parishes table. Boundary is a JSON ring of
// [lon, lat] pairs.
type ParishModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	Name     string `gorm:"column:name;not null"`
	Boundary string `gorm:"column:boundary;type:text;not null"`
}

func (ParishModel) TableName() string {
	return "parishes"
}

// RegionModel represents the regions table used by geofence checks.
type RegionModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	Name     string `gorm:"column:name;not null"`
	Boundary string `gorm:"column:boundary;type:text;not null"`
}

func (RegionModel) TableName() string {
	return "regions"
}

// LanduseModel represents the landuse table used by geofence checks.
type LanduseModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	Kind     string `gorm:"column:kind;not null"`
	Boundary string `gorm:"column:boundary;type:text;not null"`
}

func (LanduseModel) TableName() string {
	return "landuse"
}

// RouteGeometryModel represents the route_geometries table. Coordinates is a
// JSON array of [lon, lat] pairs.
type RouteGeometryModel struct {
	RouteID     string    `gorm:"column:route_id;primaryKey"`
	Coordinates string    `gorm:"column:coordinates;type:text;not null"`
	LengthM     float64   `gorm:"column:length_m;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RouteGeometryModel) TableName() string {
	return "route_geometries"
}

// SpatialModels lists every model the spatial schema migrates.
func SpatialModels() []interface{} {
	return []interface{}{
		&BuildingModel{},
		&POIModel{},
		&HighwayModel{},
		&ParishModel{},
		&RegionModel{},
		&LanduseModel{},
		&RouteGeometryModel{},
		&CycleLogModel{},
	}
}
