package infra

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/usecases/pricing"
)

// PolicyDocument is the startup configuration of the policy engine: the
// platform-wide policy layer, per-owner and per-vehicle overrides, every lot,
// and the static conversion rates. Loaded once; evaluation never reads it
// from disk again.
type PolicyDocument struct {
	Platform models.Policy            `yaml:"platform"`
	Owners   map[string]models.Policy `yaml:"owners,omitempty"`
	Vehicles map[string]models.Policy `yaml:"vehicles,omitempty"`
	// VehicleOwners maps a plate to its owner id for layer resolution.
	VehicleOwners map[string]string   `yaml:"vehicle_owners,omitempty"`
	Lots          []models.Lot        `yaml:"lots"`
	Rates         []pricing.AssetRate `yaml:"rates,omitempty"`
}

// PolicyBook is the loaded, indexed form of the policy document.
type PolicyBook struct {
	document PolicyDocument
	lots     map[string]models.Lot
}

func LoadPolicyBook(path string) (*PolicyBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read policy document %s", path)
	}

	var document PolicyDocument
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, errors.Wrapf(err, "can't parse policy document %s", path)
	}
	if len(document.Lots) == 0 {
		return nil, errors.Newf("policy document %s declares no lots", path)
	}

	lots := make(map[string]models.Lot, len(document.Lots))
	for _, lot := range document.Lots {
		if lot.Id == "" {
			return nil, errors.Newf("policy document %s has a lot without an id", path)
		}
		if _, dup := lots[lot.Id]; dup {
			return nil, errors.Newf("policy document %s declares lot %s twice", path, lot.Id)
		}
		lots[lot.Id] = lot
	}

	return &PolicyBook{document: document, lots: lots}, nil
}

func (b *PolicyBook) GetLot(lotId string) (models.Lot, error) {
	lot, ok := b.lots[lotId]
	if !ok {
		return models.Lot{}, errors.Wrapf(models.ErrUnknownLot, "lot %s", lotId)
	}
	return lot, nil
}

// PolicyStackFor assembles the policy layers that apply to a plate at a lot:
// platform, then the plate's owner, then the vehicle itself, then the lot.
func (b *PolicyBook) PolicyStackFor(lot models.Lot, plate string) models.PolicyStack {
	stack := models.PolicyStack{
		Platform: b.document.Platform,
		Lot:      lot.Policy,
	}
	if ownerId, ok := b.document.VehicleOwners[plate]; ok {
		if owner, ok := b.document.Owners[ownerId]; ok {
			stack.Owner = &owner
		}
	}
	if vehicle, ok := b.document.Vehicles[plate]; ok {
		stack.Vehicle = &vehicle
	}
	return stack
}

func (b *PolicyBook) Rates() []pricing.AssetRate {
	return b.document.Rates
}

func (b *PolicyBook) Lots() []models.Lot {
	return b.document.Lots
}
