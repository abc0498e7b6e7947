package store

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PolygonTypePoint        = "Point"
	PolygonTypePolygon      = "Polygon"
	PolygonTypeMultiPolygon = "MultiPolygon"
)

// Farm is one farm plot with its latest risk analysis.
type Farm struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	RemoteID       *string `gorm:"index" json:"remote_id"`
	FarmerName     string  `gorm:"not null;index:idx_farm_match,priority:1" json:"farmer_name"`
	MemberID       *string `json:"member_id"`
	CollectionSite string  `gorm:"index:idx_farm_match,priority:2" json:"collection_site"`
	AgentName      *string `json:"agent_name"`
	FarmVillage    string  `json:"farm_village"`
	FarmDistrict   string  `json:"farm_district"`
	FarmSize       float64 `json:"farm_size"`
	Latitude       float64 `gorm:"default:0" json:"latitude"`
	Longitude      float64 `gorm:"default:0" json:"longitude"`
	Polygon        Ring    `json:"polygon"`
	PolygonType    string  `gorm:"size:16" json:"polygon_type"`
	GeoID          *string `json:"geoid"`

	Accuracies  datatypes.JSONSlice[float64] `json:"accuracies"`
	IsValidated bool                         `gorm:"default:false" json:"is_validated"`
	ValidatedAt *time.Time                   `json:"validated_at"`
	FileID      *uint                        `gorm:"index" json:"file_id"`

	Analysis datatypes.JSONType[Analysis] `json:"analysis"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UploadedFile groups the farms submitted in one upload. A (file_name,
// uploaded_by) pair exists at most once.
type UploadedFile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FileName   string    `gorm:"not null;uniqueIndex:idx_file_uploader" json:"file_name"`
	UploadedBy string    `gorm:"not null;uniqueIndex:idx_file_uploader" json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CollectionSite is a field collection point as registered by a mobile
// device.
type CollectionSite struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"not null;uniqueIndex" json:"name"`
	LocalCSID   *int         `json:"local_cs_id"`
	DeviceID    string       `gorm:"index" json:"device_id"`
	AgentName   string       `json:"agent_name"`
	Email       string       `gorm:"index" json:"email"`
	PhoneNumber string       `gorm:"index" json:"phone_number"`
	Village     string       `json:"village"`
	District    string       `json:"district"`
	Farms       []FarmBackup `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"farms,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// FarmBackup is a device-side farm record kept verbatim for restore.
type FarmBackup struct {
	ID          uint                         `gorm:"primaryKey" json:"id"`
	RemoteID    string                       `gorm:"not null;uniqueIndex" json:"remote_id"`
	FarmerName  string                       `json:"farmer_name"`
	MemberID    string                       `json:"member_id"`
	Size        float64                      `json:"size"`
	SiteID      uint                         `gorm:"index" json:"site_id"`
	AgentName   string                       `json:"agent_name"`
	Village     string                       `json:"village"`
	District    string                       `json:"district"`
	Latitude    float64                      `json:"latitude"`
	Longitude   float64                      `json:"longitude"`
	Coordinates datatypes.JSON               `json:"coordinates"`
	Accuracies  datatypes.JSONSlice[float64] `json:"accuracies"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// MapAccessCode grants read access to one file's map.
type MapAccessCode struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FileID     uint      `gorm:"not null;uniqueIndex" json:"file_id"`
	AccessCode string    `gorm:"not null;index" json:"access_code"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WhispSetting is the single runtime settings row for the WHISP client.
type WhispSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChunkSize int       `gorm:"not null;default:500" json:"chunk_size"`
	UpdatedAt time.Time `json:"updated_at"`
}
