// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindless_test

import (
	"testing"

	"github.com/vkrmg/rmg/bindless"
)

func allFeatures() bindless.Features {
	return bindless.Features{
		UpdateAfterBind:         true,
		PartiallyBound:          true,
		VariableDescriptorCount: true,
		NonUniformIndexing:      true,
	}
}

func TestNewTableRequiresAllFeatures(t *testing.T) {
	tests := []struct {
		name string
		feat bindless.Features
	}{
		{"missing update-after-bind", bindless.Features{PartiallyBound: true, VariableDescriptorCount: true, NonUniformIndexing: true}},
		{"missing partially-bound", bindless.Features{UpdateAfterBind: true, VariableDescriptorCount: true, NonUniformIndexing: true}},
		{"missing variable-descriptor-count", bindless.Features{UpdateAfterBind: true, PartiallyBound: true, NonUniformIndexing: true}},
		{"missing non-uniform-indexing", bindless.Features{UpdateAfterBind: true, PartiallyBound: true, VariableDescriptorCount: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bindless.NewTable(bindless.DefaultLimits(), tt.feat)
			if !bindless.IsUnsupportedFeatureError(err) {
				t.Fatalf("got %v, want UnsupportedFeatureError", err)
			}
		})
	}
}

func TestTableBindFreeReusesSlot(t *testing.T) {
	tbl, err := bindless.NewTable(bindless.DefaultLimits(), allFeatures())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	h1, err := tbl.Bind(bindless.KindStorageImage)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if h1.Kind() != bindless.KindStorageImage {
		t.Fatalf("Kind() = %v, want KindStorageImage", h1.Kind())
	}
	if h1.Slot() != 0 {
		t.Fatalf("Slot() = %d, want 0", h1.Slot())
	}

	if err := tbl.Free(h1); err != nil {
		t.Fatalf("Free: %v", err)
	}

	h2, err := tbl.Bind(bindless.KindStorageImage)
	if err != nil {
		t.Fatalf("Bind after free: %v", err)
	}
	if h2.Slot() != 0 {
		t.Fatalf("reused Slot() = %d, want 0 (LIFO reuse)", h2.Slot())
	}
}

func TestTableBindFullIsRecoverable(t *testing.T) {
	limits := bindless.Limits{}
	limits[bindless.KindSampler] = 1
	tbl, err := bindless.NewTable(limits, allFeatures())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if _, err := tbl.Bind(bindless.KindSampler); err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	_, err = tbl.Bind(bindless.KindSampler)
	if !bindless.IsBindFullError(err) {
		t.Fatalf("got %v, want BindFullError", err)
	}

	used, capacity := tbl.Occupancy(bindless.KindSampler)
	if used != 1 || capacity != 1 {
		t.Fatalf("Occupancy() = (%d,%d), want (1,1)", used, capacity)
	}
}

func TestFreeUnknownHandle(t *testing.T) {
	tbl, err := bindless.NewTable(bindless.DefaultLimits(), allFeatures())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if err := tbl.Free(bindless.Undefined); err == nil {
		t.Fatal("Free(Undefined) = nil, want error")
	}
	h, _ := tbl.Bind(bindless.KindSampledImage)
	if err := tbl.Free(h); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := tbl.Free(h); err == nil {
		t.Fatal("double Free = nil, want error")
	}
}

func TestTableBindAssignsDistinctKindsIndependentSlots(t *testing.T) {
	tbl, err := bindless.NewTable(bindless.DefaultLimits(), allFeatures())
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	img, err := tbl.Bind(bindless.KindStorageImage)
	if err != nil {
		t.Fatalf("Bind image: %v", err)
	}
	buf, err := tbl.Bind(bindless.KindStorageBuffer)
	if err != nil {
		t.Fatalf("Bind buffer: %v", err)
	}
	if img.Slot() != 0 || buf.Slot() != 0 {
		t.Fatalf("expected both kinds to start at slot 0, got image=%d buffer=%d", img.Slot(), buf.Slot())
	}
	if img.Kind() == buf.Kind() {
		t.Fatal("expected distinct kinds")
	}
}
