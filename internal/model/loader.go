package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// deviceDoc, componentDoc, and dataItemDoc are the on-disk JSON shapes
// LoadDevicesFile decodes. Device-model XML parsing is an explicit scope
// exclusion (spec.md §1); this JSON form is the "already-constructed
// []*model.Device" SPEC_FULL.md §17.5 describes Agent.LoadDevices as
// accepting, given a concrete file format to read it from.
type deviceDoc struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	DataItems  []dataItemDoc  `json:"dataItems,omitempty"`
	Components []componentDoc `json:"components,omitempty"`
}

type componentDoc struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	DataItems  []dataItemDoc  `json:"dataItems,omitempty"`
	Components []componentDoc `json:"components,omitempty"`
}

type dataItemDoc struct {
	ID             string  `json:"id"`
	Category       string  `json:"category"`
	Type           string  `json:"type"`
	SubType        string  `json:"subType,omitempty"`
	Representation string  `json:"representation,omitempty"`
	Units          string  `json:"units,omitempty"`
	NativeUnits    string  `json:"nativeUnits,omitempty"`
	Scale          float64 `json:"scale,omitempty"`
	Offset         float64 `json:"offset,omitempty"`
	ConstantValue  *string `json:"constantValue,omitempty"`
	Discrete       bool    `json:"discrete,omitempty"`
	SourceAdapter  string  `json:"sourceAdapter,omitempty"`
	FilterDelta    float64 `json:"filterDelta,omitempty"`
	Period         float64 `json:"period,omitempty"`
}

// LoadDevicesFile reads a JSON device-model document (an array of devices)
// from path and builds the corresponding []*Device tree, ready to pass to
// Agent.AddDevice.
func LoadDevicesFile(path string) ([]*Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device model: %w", err)
	}

	var docs []deviceDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("parse device model: %w", err)
	}

	devices := make([]*Device, 0, len(docs))
	for _, dd := range docs {
		d := NewDevice(dd.UUID, dd.Name)
		for _, di := range dd.DataItems {
			item, err := buildDataItem(di)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", dd.UUID, err)
			}
			d.AddDataItem(item)
		}
		for _, cd := range dd.Components {
			child, err := buildComponent(cd)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", dd.UUID, err)
			}
			d.AddChild(child)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func buildComponent(cd componentDoc) (*Component, error) {
	c := NewComponent(cd.ID, cd.Type, cd.Name)
	for _, di := range cd.DataItems {
		item, err := buildDataItem(di)
		if err != nil {
			return nil, err
		}
		c.AddDataItem(item)
	}
	for _, child := range cd.Components {
		built, err := buildComponent(child)
		if err != nil {
			return nil, err
		}
		c.AddChild(built)
	}
	return c, nil
}

func buildDataItem(di dataItemDoc) (*DataItem, error) {
	item := &DataItem{
		ID:             di.ID,
		Category:       Category(di.Category),
		Type:           di.Type,
		SubType:        di.SubType,
		Representation: Representation(di.Representation),
		Units:          di.Units,
		NativeUnits:    di.NativeUnits,
		Discrete:       di.Discrete,
		SourceAdapter:  di.SourceAdapter,
		FilterDelta:    di.FilterDelta,
		Period:         di.Period,
	}
	if item.ID == "" {
		return nil, fmt.Errorf("data item missing id")
	}
	if di.Scale != 0 || di.Offset != 0 {
		item.Converter = &UnitConverter{Scale: di.Scale, Offset: di.Offset}
	}
	if di.ConstantValue != nil {
		cv := StringValue(*di.ConstantValue)
		item.ConstantValue = &cv
	}
	return item, nil
}
