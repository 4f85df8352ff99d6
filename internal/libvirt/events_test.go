package libvirt

import (
	"testing"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virtfleet/internal/event"
	"github.com/jbweber/virtfleet/internal/storage"
)

const testDomainID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

func testDomain(t *testing.T) libvirt.Domain {
	t.Helper()
	uuid, err := storage.ParseUUID(testDomainID)
	if err != nil {
		t.Fatal(err)
	}
	return libvirt.Domain{Name: "web-1", UUID: uuid, ID: 3}
}

func TestLifecycleEvent(t *testing.T) {
	got := lifecycleEvent(libvirt.DomainEventLifecycleMsg{
		Dom:    testDomain(t),
		Event:  int32(libvirt.DomainEventStopped),
		Detail: 1,
	})

	want := event.DomainLifecycle{DomainID: testDomainID, Name: "web-1", Type: event.DomainStopped, Detail: 1}
	if got != want {
		t.Errorf("lifecycleEvent() = %+v, want %+v", got, want)
	}
}

func TestMetadataEvent(t *testing.T) {
	msg := libvirt.DomainEventCallbackMetadataChangeMsg{
		Dom:   testDomain(t),
		Type:  int32(libvirt.DomainMetadataElement),
		Nsuri: libvirt.OptString{"https://virtfleet.dev/xmlns/tags"},
	}
	want := event.DomainMetadataChange{
		DomainID:  testDomainID,
		Type:      event.MetadataElement,
		Namespace: "https://virtfleet.dev/xmlns/tags",
	}

	tests := []struct {
		name   string
		raw    interface{}
		want   event.DomainMetadataChange
		wantOK bool
	}{
		{name: "value", raw: msg, want: want, wantOK: true},
		{name: "pointer", raw: &msg, want: want, wantOK: true},
		{
			name:   "description without namespace",
			raw:    libvirt.DomainEventCallbackMetadataChangeMsg{Dom: testDomain(t), Type: int32(libvirt.DomainMetadataDescription)},
			want:   event.DomainMetadataChange{DomainID: testDomainID, Type: event.MetadataDescription},
			wantOK: true,
		},
		{name: "other callback", raw: libvirt.DomainEventLifecycleMsg{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := metadataEvent(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("metadataEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("metadataEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
