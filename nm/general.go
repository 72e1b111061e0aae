package nm

import (
	"context"
)

// generalProperties is the order in which the general status is reported.
var generalProperties = []string{
	"State",
	"Connectivity",
	"WirelessEnabled",
	"WirelessHardwareEnabled",
	"WwanEnabled",
	"WwanHardwareEnabled",
}

// GeneralStatus is one line of the general status report.
type GeneralStatus struct {
	Name   string `json:"name" yaml:"name"`
	Status Status `json:"status" yaml:"status"`
}

// GeneralReport is the daemon wide status.
type GeneralReport struct {
	Version string          `json:"version" yaml:"version"`
	Entries []GeneralStatus `json:"entries" yaml:"entries"`
}

// GeneralService reads daemon wide state.
type GeneralService struct {
	c *Client
}

// Status reads the state, connectivity and radio flags in one GetAll.
func (s *GeneralService) Status(ctx context.Context) (GeneralReport, error) {
	props, err := s.c.Bus.GetAll(ctx, ObjectPath, Interface)
	if err != nil {
		return GeneralReport{}, err
	}
	var report GeneralReport
	report.Version, _ = props.String("Version")
	for _, name := range generalProperties {
		category := GeneralCategories[name]
		var status Status
		if b, err := props.Bool(name); err == nil {
			status = EnabledStatus(category, b)
		} else {
			code, err := props.Uint32(name)
			if err != nil {
				return GeneralReport{}, err
			}
			status = TranslateStatus(category, code)
		}
		report.Entries = append(report.Entries, GeneralStatus{Name: category, Status: status})
	}
	return report, nil
}

// Hostname is the persistent hostname known to the settings service.
func (s *GeneralService) Hostname(ctx context.Context) (string, error) {
	return s.c.getString(ctx, SettingsObjectPath, SettingsInterface, "Hostname")
}
