package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"ingest-gateway/ingest/domain"
)

func TestParseLicensing(t *testing.T) {
	tests := []struct {
		input    string
		expected domain.Licensing
		wantErr  bool
	}{
		{input: "Standard", expected: domain.LicensingStandard},
		{input: "premium", expected: domain.LicensingPremium},
		{input: " ENTERPRISE ", expected: domain.LicensingEnterprise},
		{input: "1", wantErr: true},
		{input: "Gold", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := qt.New(t)
			got, err := domain.ParseLicensing(tt.input)
			if tt.wantErr {
				c.Assert(errors.Is(err, domain.ErrInvalidEnum), qt.IsTrue)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, tt.expected)
		})
	}
}

func TestParseDeviceType(t *testing.T) {
	c := qt.New(t)

	got, err := domain.ParseDeviceType("custom")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, domain.DeviceTypeCustom)
	c.Assert(got.String(), qt.Equals, "Custom")

	_, err = domain.ParseDeviceType("Gizmo")
	c.Assert(errors.Is(err, domain.ErrInvalidEnum), qt.IsTrue)
	c.Assert(domain.DeviceType(9).String(), qt.Equals, "DeviceType(9)")
}

func TestOrderNo_AcceptsStringAndNumber(t *testing.T) {
	c := qt.New(t)

	var d []domain.DeviceDescriptor
	err := json.Unmarshal([]byte(`[{"orderNo":"A-1","type":"Standard"},{"ORDERNO":42,"type":"Custom","address":"Main St"},{"orderNo":null}]`), &d)
	c.Assert(err, qt.IsNil)
	c.Assert(d, qt.HasLen, 3)
	c.Assert(d[0].OrderNo, qt.Equals, domain.OrderNo("A-1"))
	c.Assert(d[1].OrderNo, qt.Equals, domain.OrderNo("42"))
	c.Assert(*d[1].Address, qt.Equals, "Main St")
	c.Assert(d[2].OrderNo, qt.Equals, domain.OrderNo(""))
}

func TestOrderNo_RejectsObjects(t *testing.T) {
	c := qt.New(t)
	var d domain.DeviceDescriptor
	err := json.Unmarshal([]byte(`{"orderNo":{"x":1}}`), &d)
	c.Assert(err, qt.IsNotNil)
}
