package domain

import (
	"fmt"
	"strings"
)

type Licensing int

const (
	LicensingStandard   Licensing = 1
	LicensingPremium    Licensing = 2
	LicensingEnterprise Licensing = 3
)

var licensingNames = map[Licensing]string{
	LicensingStandard:   "Standard",
	LicensingPremium:    "Premium",
	LicensingEnterprise: "Enterprise",
}

func (l Licensing) String() string {
	if name, ok := licensingNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Licensing(%d)", int(l))
}

// ParseLicensing aceita apenas os nomes (sem diferenciar maiúsculas).
// Números ("1") são recusados.
func ParseLicensing(s string) (Licensing, error) {
	s = strings.TrimSpace(s)
	for l, name := range licensingNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: licensing %q", ErrInvalidEnum, s)
}

type DeviceType int

const (
	DeviceTypeStandard DeviceType = 1
	DeviceTypeCustom   DeviceType = 2
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeStandard: "Standard",
	DeviceTypeCustom:   "Custom",
}

func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DeviceType(%d)", int(t))
}

func ParseDeviceType(s string) (DeviceType, error) {
	s = strings.TrimSpace(s)
	for t, name := range deviceTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: device type %q", ErrInvalidEnum, s)
}

type Company struct {
	ID        int64
	Name      string
	Code      string
	Licensing Licensing
}

type Location struct {
	ID       int64
	Name     string
	Address  string
	ParentID int64
}

type Device struct {
	ID           int64
	SerialNumber string
	Type         DeviceType
	LocationID   int64
}
