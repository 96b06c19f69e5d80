package prefstore

import (
	"os"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/services/planner/api"
	"github.com/xinkaiwang/volunteerplanner/services/planner/internal/data"
	"gopkg.in/yaml.v3"
)

const ErrInvalidCatalog = "InvalidCatalog"

// ServiceCatalog is the fixed, ordered list of services volunteers can rank.
type ServiceCatalog struct {
	services []data.ServiceSlot
	index    map[data.ServiceId]int
}

func NewServiceCatalog(services []data.ServiceSlot) (*ServiceCatalog, *kerror.Kerror) {
	if len(services) == 0 {
		return nil, kerror.Create(ErrInvalidCatalog, "catalog has no services").WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	sc := &ServiceCatalog{
		services: append([]data.ServiceSlot(nil), services...),
		index:    make(map[data.ServiceId]int, len(services)),
	}
	for i, svc := range services {
		if svc.Id == "" {
			return nil, kerror.Create(ErrInvalidCatalog, "service without id").With("position", i).WithErrorCode(kerror.EC_INVALID_PARAMETER)
		}
		if _, ok := sc.index[svc.Id]; ok {
			return nil, kerror.Create(ErrInvalidCatalog, "duplicate service id").With("serviceId", svc.Id).WithErrorCode(kerror.EC_INVALID_PARAMETER)
		}
		sc.index[svc.Id] = i
	}
	return sc, nil
}

// DefaultServiceCatalog is the built-in event staffing catalog.
func DefaultServiceCatalog() *ServiceCatalog {
	sc, ke := NewServiceCatalog([]data.ServiceSlot{
		{Id: "svc-reception", Name: "Reception", Description: "Front-desk welcome desk", Capacity: 4},
		{Id: "svc-logistics", Name: "Logistics", Description: "Moving / carrying supplies", Capacity: 5},
		{Id: "svc-food", Name: "Food-service", Description: "Buffet & drinks", Capacity: 6},
		{Id: "svc-security", Name: "Security", Description: "Access control, crowd flow", Capacity: 3},
		{Id: "svc-tech", Name: "Tech support", Description: "A/V & projector ops", Capacity: 2},
		{Id: "svc-clean", Name: "Cleanup", Description: "Venue cleanup team", Capacity: 4},
		{Id: "svc-runner", Name: "Runner", Description: "Ad-hoc errands", Capacity: 3},
		{Id: "svc-stage", Name: "Stage hand", Description: "Speaker coordination", Capacity: 2},
		{Id: "svc-parking", Name: "Parking", Description: "Car-park direction", Capacity: 2},
		{Id: "svc-info", Name: "Info-desk", Description: "General information point", Capacity: 2},
	})
	if ke != nil {
		panic(ke)
	}
	return sc
}

type catalogYaml struct {
	Services []api.ServiceJson `yaml:"services"`
}

// ParseServiceCatalogYaml expects a top level "services" list of {id, name, description, capacity}.
func ParseServiceCatalogYaml(content []byte) (*ServiceCatalog, *kerror.Kerror) {
	var cy catalogYaml
	if err := yaml.Unmarshal(content, &cy); err != nil {
		return nil, kerror.Wrap(err, ErrInvalidCatalog, "failed to parse catalog yaml", false).WithErrorCode(kerror.EC_INVALID_PARAMETER)
	}
	services := make([]data.ServiceSlot, len(cy.Services))
	for i, sj := range cy.Services {
		services[i] = data.ServiceSlot{
			Id:          data.ServiceId(sj.Id),
			Name:        sj.Name,
			Description: sj.Description,
			Capacity:    sj.Capacity,
		}
	}
	return NewServiceCatalog(services)
}

// LoadServiceCatalog returns the default catalog when path is empty.
func LoadServiceCatalog(path string) (*ServiceCatalog, *kerror.Kerror) {
	if path == "" {
		return DefaultServiceCatalog(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, kerror.Wrap(err, ErrInvalidCatalog, "failed to read catalog file", false).With("path", path)
	}
	return ParseServiceCatalogYaml(content)
}

// Services returns a copy in catalog order.
func (sc *ServiceCatalog) Services() []data.ServiceSlot {
	return append([]data.ServiceSlot(nil), sc.services...)
}

func (sc *ServiceCatalog) Lookup(id data.ServiceId) (data.ServiceSlot, bool) {
	i, ok := sc.index[id]
	if !ok {
		return data.ServiceSlot{}, false
	}
	return sc.services[i], true
}

func (sc *ServiceCatalog) Size() int {
	return len(sc.services)
}

func (sc *ServiceCatalog) TotalCapacity() uint {
	var total uint
	for _, svc := range sc.services {
		total += svc.Capacity
	}
	return total
}
