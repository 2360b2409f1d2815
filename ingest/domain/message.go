package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageKind é o discriminador do envelope. O conjunto é fechado:
// só os valores abaixo são despachados.
type MessageKind string

const (
	KindNewCompany    MessageKind = "NewCompany"
	KindDeleteDevices MessageKind = "DeleteDevices"
)

// Envelope é o formato mínimo comum a toda mensagem. O encoding/json já
// casa os nomes de campo sem diferenciar maiúsculas.
type Envelope struct {
	ID          string      `json:"id"`
	MessageType MessageKind `json:"messageType"`
}

type NewCompanyMessage struct {
	Envelope
	CompanyName string             `json:"companyName"`
	CompanyCode string             `json:"companyCode"`
	Licensing   string             `json:"licensing"`
	Devices     []DeviceDescriptor `json:"devices"`
}

type DeviceDescriptor struct {
	OrderNo OrderNo `json:"orderNo"`
	Type    string  `json:"type"`
	Address *string `json:"address,omitempty"`
}

type DeleteDevicesMessage struct {
	Envelope
	SerialNumbers []string `json:"serialNumbers"`
}

// OrderNo aceita tanto string quanto número no JSON ("A-1", 42).
type OrderNo string

func (o *OrderNo) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = OrderNo(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("orderNo: %w", err)
	}
	*o = OrderNo(n.String())
	return nil
}
