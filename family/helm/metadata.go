package helm

import (
	"fmt"
	"time"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/repo"

	"github.com/slauger/chantal"
)

// toMetadata converts a repo.ChartVersion entry from index.yaml into
// chantal's family-agnostic HelmMetadata. Of the fields index.yaml carries
// that HelmMetadata has no room for, Home, Icon and KubeVersion are stashed
// into Overflow; the others (Sources, Keywords, ...) are dropped.
func toMetadata(cv *repo.ChartVersion) *chantal.HelmMetadata {
	m := &chantal.HelmMetadata{
		Overflow: map[string]string{},
	}
	if cv.Metadata != nil {
		m.Name = cv.Name
		m.Version = cv.Version
		m.AppVersion = cv.AppVersion
		m.Description = cv.Description
		if cv.Home != "" {
			m.Overflow["home"] = cv.Home
		}
		if cv.Icon != "" {
			m.Overflow["icon"] = cv.Icon
		}
		if cv.KubeVersion != "" {
			m.Overflow["kube_version"] = cv.KubeVersion
		}
		for _, dep := range cv.Dependencies {
			m.Dependencies = append(m.Dependencies, dep.Name+"-"+dep.Version)
		}
		for _, mnt := range cv.Maintainers {
			m.Maintainers = append(m.Maintainers, maintainerString(mnt))
		}
	}
	m.Digest = cv.Digest
	m.URLs = append([]string(nil), cv.URLs...)
	if !cv.Created.IsZero() {
		m.Created = cv.Created.Format(time.RFC3339)
	}
	if len(m.Overflow) == 0 {
		m.Overflow = nil
	}
	return m
}

func maintainerString(mnt *chart.Maintainer) string {
	if mnt.Email == "" {
		return mnt.Name
	}
	return fmt.Sprintf("%s <%s>", mnt.Name, mnt.Email)
}

// fromMetadata builds the repo.ChartVersion entry Publish writes into
// index.yaml. urls and created are supplied by the caller since they depend
// on the publication, not on anything carried in HelmMetadata itself. It
// restores the Overflow fields toMetadata stashed; Dependencies and
// Maintainers are not written back.
func fromMetadata(m *chantal.HelmMetadata, urls []string, created time.Time) *repo.ChartVersion {
	md := &chart.Metadata{
		Name:        m.Name,
		Version:     m.Version,
		AppVersion:  m.AppVersion,
		Description: m.Description,
		APIVersion:  chart.APIVersionV2,
	}
	if m.Overflow != nil {
		md.Home = m.Overflow["home"]
		md.Icon = m.Overflow["icon"]
		md.KubeVersion = m.Overflow["kube_version"]
	}
	return &repo.ChartVersion{
		Metadata: md,
		URLs:     urls,
		Created:  created,
		Digest:   m.Digest,
	}
}
