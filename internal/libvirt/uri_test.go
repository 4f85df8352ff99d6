package libvirt

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    Target
		wantErr bool
	}{
		{
			name: "local system",
			uri:  "qemu:///system",
			want: Target{Transport: TransportUnix, Socket: DefaultSocket, DriverURI: "qemu:///system"},
		},
		{
			name: "unix with socket",
			uri:  "qemu+unix:///session?socket=/run/user/1000/libvirt/libvirt-sock",
			want: Target{Transport: TransportUnix, Socket: "/run/user/1000/libvirt/libvirt-sock", DriverURI: "qemu:///session"},
		},
		{
			name: "tcp with port",
			uri:  "qemu+tcp://10.0.0.5:16510/system",
			want: Target{Transport: TransportTCP, Host: "10.0.0.5", Port: "16510", DriverURI: "qemu:///system"},
		},
		{
			name: "tls",
			uri:  "qemu+tls://kvm1.example/system",
			want: Target{Transport: TransportTLS, Host: "kvm1.example", DriverURI: "qemu:///system"},
		},
		{
			name: "bare remote defaults to tls",
			uri:  "qemu://kvm1/system",
			want: Target{Transport: TransportTLS, Host: "kvm1", DriverURI: "qemu:///system"},
		},
		{
			name: "ssh",
			uri:  "qemu+ssh://root@kvm1/system",
			want: Target{Transport: TransportSSH, Host: "kvm1", Port: "22", User: "root", Socket: DefaultSocket, DriverURI: "qemu:///system"},
		},
		{
			name: "missing path defaults to system",
			uri:  "qemu+tcp://kvm1",
			want: Target{Transport: TransportTCP, Host: "kvm1", DriverURI: "qemu:///system"},
		},
		{
			name:    "other driver",
			uri:     "xen:///system",
			wantErr: true,
		},
		{
			name:    "unknown transport",
			uri:     "qemu+libssh2://kvm1/system",
			wantErr: true,
		},
		{
			name:    "remote without host",
			uri:     "qemu+tcp:///system",
			wantErr: true,
		},
		{
			name:    "unparsable",
			uri:     "qemu+tcp://[::1/system",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseURI() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTarget_Address(t *testing.T) {
	if got := (Target{Host: "kvm1"}).Address(); got != "kvm1" {
		t.Errorf("Address() = %s", got)
	}
	if got := (Target{Host: "::1", Port: "22"}).Address(); got != "[::1]:22" {
		t.Errorf("Address() = %s", got)
	}
}
