package rmg_test

import (
	"testing"

	rmg "github.com/vkrmg/rmg"
	"github.com/vkrmg/rmg/bindless"
	"github.com/vkrmg/rmg/hal/noop"
	"github.com/vkrmg/rmg/registry"
	"github.com/vkrmg/rmg/track"
)

func TestHALDeviceBinderWritesRealBindGroups(t *testing.T) {
	dev := &noop.Device{}
	binder, err := rmg.NewHALDeviceBinder(dev)
	if err != nil {
		t.Fatalf("NewHALDeviceBinder: %v", err)
	}

	if _, ok := binder.DescriptorSet(bindless.KindStorageBuffer); ok {
		t.Fatal("DescriptorSet before any WriteDescriptor should report not-ok")
	}

	binder.WriteDescriptor(bindless.KindStorageBuffer, 0, 0xf00d)

	id, ok := binder.DescriptorSet(bindless.KindStorageBuffer)
	if !ok {
		t.Fatal("DescriptorSet after WriteDescriptor should report ok")
	}
	group, ok := binder.ResolveBindGroup(id)
	if !ok || group == nil {
		t.Fatalf("ResolveBindGroup(%d) = (%v, %v), want a real hal.BindGroup", id, group, ok)
	}

	layoutID, err := binder.PipelineLayout(64)
	if err != nil {
		t.Fatalf("PipelineLayout: %v", err)
	}
	layout, ok := binder.ResolvePipelineLayout(layoutID)
	if !ok || layout == nil {
		t.Fatalf("ResolvePipelineLayout(%d) = (%v, %v), want a real hal.PipelineLayout", layoutID, layout, ok)
	}

	// A second call with the same push-constant size must reuse the cached
	// layout rather than asking dev to build another one.
	again, err := binder.PipelineLayout(64)
	if err != nil {
		t.Fatalf("PipelineLayout (cached): %v", err)
	}
	if again != layoutID {
		t.Fatalf("PipelineLayout(64) returned %d then %d, want the same cached id", layoutID, again)
	}
}

func TestHALDeviceBinderSkipsUnmappedKind(t *testing.T) {
	binder, err := rmg.NewHALDeviceBinder(&noop.Device{})
	if err != nil {
		t.Fatalf("NewHALDeviceBinder: %v", err)
	}

	// KindAccelerationStructure has no types.BindingResource variant; the
	// write must be silently dropped rather than panic.
	binder.WriteDescriptor(bindless.KindAccelerationStructure, 0, 0xdead)
	if _, ok := binder.DescriptorSet(bindless.KindAccelerationStructure); ok {
		t.Fatal("DescriptorSet(KindAccelerationStructure) should never report ok")
	}
}

func TestRecorderWiresHALDeviceBinder(t *testing.T) {
	binder, err := rmg.NewHALDeviceBinder(&noop.Device{})
	if err != nil {
		t.Fatalf("NewHALDeviceBinder: %v", err)
	}

	rec, err := rmg.NewRecorder(
		bindless.DefaultLimits(),
		bindless.Features{UpdateAfterBind: true, PartiallyBound: true, VariableDescriptorCount: true, NonUniformIndexing: true},
		binder,
		&recorderFakeSink{},
		[]rmg.TrackConfig{{FamilyIndex: 0, Capability: track.CapabilityGraphics, Backend: &recorderFakeBackend{}}},
	)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	if _, err := rec.Registry().AddBuffer(registry.Buffer{Resource: 0xabc}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if _, ok := binder.DescriptorSet(bindless.KindStorageBuffer); !ok {
		t.Fatal("Recorder.NewRecorder did not wire the HALDeviceBinder into the Registry")
	}
}
