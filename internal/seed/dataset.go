package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	goValidator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed dataset.yaml
var defaultDataset []byte

// Dataset は投入するデモデータ一式。
type Dataset struct {
	BusinessPartners []BusinessPartner `yaml:"business_partners" validate:"dive"`
	CatalogParts     []CatalogPart     `yaml:"catalog_parts" validate:"dive"`
	SerializedParts  []SerializedPart  `yaml:"serialized_parts" validate:"dive"`
}

// BusinessPartner は取引先の事業者。
type BusinessPartner struct {
	BPNL string `yaml:"bpnl" json:"bpnl" validate:"required"`
	Name string `yaml:"name" json:"name" validate:"required"`
}

// Material は部品の素材構成。
type Material struct {
	Name  string  `yaml:"name" json:"name"`
	Share float64 `yaml:"share" json:"share"`
}

// Measurement は単位付きの寸法・重量。
type Measurement struct {
	Value float64 `yaml:"value" json:"value"`
	Unit  string  `yaml:"unit" json:"unit"`
}

// CatalogPart はカタログ部品（型番単位の部品）。
type CatalogPart struct {
	ManufacturerID     string       `yaml:"manufacturerId" json:"manufacturerId" validate:"required"`
	ManufacturerPartID string       `yaml:"manufacturerPartId" json:"manufacturerPartId" validate:"required"`
	Name               string       `yaml:"name" json:"name" validate:"required"`
	Category           string       `yaml:"category" json:"category,omitempty"`
	Description        string       `yaml:"description" json:"description,omitempty"`
	Materials          []Material   `yaml:"materials" json:"materials,omitempty"`
	Weight             *Measurement `yaml:"weight" json:"weight,omitempty"`
	Width              *Measurement `yaml:"width" json:"width,omitempty"`
	Height             *Measurement `yaml:"height" json:"height,omitempty"`
	Length             *Measurement `yaml:"length" json:"length,omitempty"`
}

// SerializedPart はシリアル部品（個体単位の部品）。
type SerializedPart struct {
	BusinessPartnerNumber string `yaml:"businessPartnerNumber" json:"businessPartnerNumber" validate:"required"`
	ManufacturerID        string `yaml:"manufacturerId" json:"manufacturerId" validate:"required"`
	ManufacturerPartID    string `yaml:"manufacturerPartId" json:"manufacturerPartId" validate:"required"`
	PartInstanceID        string `yaml:"partInstanceId" json:"partInstanceId" validate:"required"`
	VAN                   string `yaml:"van" json:"van,omitempty"`
	Name                  string `yaml:"name" json:"name,omitempty"`
	Category              string `yaml:"category" json:"category,omitempty"`
}

// DisplayName は表示名を返す。名前が無い場合は個体IDを使う。
func (p SerializedPart) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.PartInstanceID
}

// catalogPartTwin はカタログ部品のデジタルツイン作成リクエスト。
type catalogPartTwin struct {
	ManufacturerID     string `json:"manufacturerId"`
	ManufacturerPartID string `json:"manufacturerPartId"`
}

// serializedPartTwin はシリアル部品のデジタルツイン作成リクエスト。
type serializedPartTwin struct {
	ManufacturerID     string `json:"manufacturerId"`
	ManufacturerPartID string `json:"manufacturerPartId"`
	PartInstanceID     string `json:"partInstanceId"`
}

// DefaultDataset は同梱のデモデータを返す。
func DefaultDataset() (*Dataset, error) {
	return ParseDataset(defaultDataset)
}

// LoadDataset はYAMLファイルからデータを読み込む。pathが空の場合は同梱のデータを返す。
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return DefaultDataset()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("データファイルの読み込みに失敗: %w", err)
	}
	return ParseDataset(raw)
}

// ParseDataset はYAMLを解析して検証する。
func ParseDataset(raw []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("データの解析に失敗: %w", err)
	}

	if err := goValidator.New().Struct(&d); err != nil {
		var validationErrors goValidator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			ve := validationErrors[0]
			return nil, fmt.Errorf("データが不正です: %s(%s)", ve.Namespace(), ve.Tag())
		}
		return nil, fmt.Errorf("データの検証に失敗: %w", err)
	}
	return &d, nil
}
