// Package metadata stores VM tags in a private libvirt domain metadata
// namespace, so tags persist with the domain itself and every writer
// triggers a metadata change event on the host.
package metadata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

// TagsKey is the XML prefix libvirt uses when storing the tags element.
const TagsKey = "virtfleet"

// LibvirtClient is the subset of *libvirt.Libvirt used for metadata.
type LibvirtClient interface {
	DomainGetMetadata(Dom libvirt.Domain, Type int32, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) (string, error)
	DomainSetMetadata(Dom libvirt.Domain, Type int32, Metadata libvirt.OptString, Key libvirt.OptString, Uri libvirt.OptString, Flags libvirt.DomainModificationImpact) error
}

// TagsDocument is the element stored under the tags namespace:
//
//	<tags><tag>web</tag><tag>prod</tag></tags>
type TagsDocument struct {
	XMLName xml.Name `xml:"tags"`
	Tags    []string `xml:"tag"`
}

// Impact picks the metadata scope for a domain. Transient domains have no
// persistent config, so their tags live on the running instance only.
func Impact(persistent bool) libvirt.DomainModificationImpact {
	if persistent {
		return libvirt.DomainAffectConfig
	}
	return libvirt.DomainAffectLive
}

// ParseTags decodes a tags document. Blank tags are dropped.
func ParseTags(doc string) ([]string, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}

	var td TagsDocument
	if err := xml.Unmarshal([]byte(doc), &td); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags XML: %w", err)
	}

	tags := make([]string, 0, len(td.Tags))
	for _, t := range td.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, nil
}

// BuildTags encodes tags as a tags document.
func BuildTags(tags []string) (string, error) {
	data, err := xml.Marshal(TagsDocument{Tags: tags})
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags XML: %w", err)
	}
	return string(data), nil
}

// LoadTags reads the tag list of a domain. A domain without tags metadata
// has no tags; that is not an error.
func LoadTags(l LibvirtClient, domain libvirt.Domain, namespace string, persistent bool) ([]string, error) {
	doc, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{namespace},
		Impact(persistent),
	)
	if err != nil {
		if isNoMetadata(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get libvirt domain metadata: %w", err)
	}

	return ParseTags(doc)
}

// StoreTags replaces the tag list of a domain. An empty list removes the
// metadata element.
func StoreTags(l LibvirtClient, domain libvirt.Domain, namespace string, persistent bool, tags []string) error {
	var doc string
	if len(tags) > 0 {
		var err error
		doc, err = BuildTags(tags)
		if err != nil {
			return err
		}
	}

	err := l.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{doc}, // empty string removes metadata
		libvirt.OptString{TagsKey},
		libvirt.OptString{namespace},
		Impact(persistent),
	)
	if err != nil {
		return fmt.Errorf("failed to set libvirt domain metadata: %w", err)
	}

	return nil
}

func isNoMetadata(err error) bool {
	var lerr libvirt.Error
	if errors.As(err, &lerr) {
		return lerr.Code == uint32(libvirt.ErrNoDomainMetadata)
	}
	return false
}
