// Package system probes the host for the facts that drive provisioning:
// operating system family, Linux distribution, CPU architecture and the
// package managers available on PATH.
package system

import (
	"fmt"
	"sort"
	"strings"
)

// Family is the closed set of platform families the provisioner branches on.
type Family string

const (
	FamilyWindows      Family = "windows"
	FamilyArch         Family = "linux-arch"
	FamilyDebian       Family = "linux-debian"
	FamilyLinuxGeneric Family = "linux-generic"
)

// IsLinux reports whether the family is one of the Linux variants.
func (f Family) IsLinux() bool {
	return f == FamilyArch || f == FamilyDebian || f == FamilyLinuxGeneric
}

// PackageManager identifies a package manager binary.
type PackageManager string

const (
	Yay    PackageManager = "yay"
	Paru   PackageManager = "paru"
	Pacman PackageManager = "pacman"
	Apt    PackageManager = "apt"
	Dnf    PackageManager = "dnf"
	Winget PackageManager = "winget"
	Choco  PackageManager = "choco"
)

// KnownPackageManagers lists the managers the probe looks for, in lookup order.
var KnownPackageManagers = []PackageManager{Yay, Paru, Pacman, Apt, Dnf, Winget, Choco}

// Profile is an immutable snapshot of the host environment.
type Profile struct {
	OS              string           `json:"os"`
	Family          Family           `json:"family"`
	DistroID        string           `json:"distro_id,omitempty"`
	DistroVersion   string           `json:"distro_version,omitempty"`
	DistroLike      []string         `json:"distro_like,omitempty"`
	Arch            string           `json:"arch"`
	PackageManagers []PackageManager `json:"package_managers"`
	// Ambiguous is set when the host could not be classified and the profile
	// fell back to the generic Linux family.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// Has reports whether the package manager was found on the host.
func (p Profile) Has(pm PackageManager) bool {
	for _, candidate := range p.PackageManagers {
		if candidate == pm {
			return true
		}
	}
	return false
}

// IsDistro reports whether the distribution ID or any ID_LIKE entry matches.
func (p Profile) IsDistro(ids ...string) bool {
	for _, id := range ids {
		if strings.EqualFold(p.DistroID, id) {
			return true
		}
		for _, like := range p.DistroLike {
			if strings.EqualFold(like, id) {
				return true
			}
		}
	}
	return false
}

func (p Profile) String() string {
	managers := make([]string, 0, len(p.PackageManagers))
	for _, pm := range p.PackageManagers {
		managers = append(managers, string(pm))
	}
	sort.Strings(managers)
	pms := strings.Join(managers, ", ")
	if pms == "" {
		pms = "none"
	}

	lines := []string{
		fmt.Sprintf("OS: %s (%s)", p.OS, p.Family),
		fmt.Sprintf("Architecture: %s", p.Arch),
	}
	if p.DistroID != "" {
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("Distribution: %s %s", p.DistroID, p.DistroVersion)))
	}
	lines = append(lines, "Package managers: "+pms)
	return strings.Join(lines, "\n")
}

var (
	archLike   = []string{"arch", "manjaro", "endeavouros", "garuda", "artix"}
	debianLike = []string{"debian", "ubuntu", "linuxmint", "pop", "elementary", "zorin", "raspbian"}
)

// classify maps a GOOS plus distribution identity onto a Family.
func classify(goos, distroID string, like []string) (Family, bool) {
	switch goos {
	case "windows":
		return FamilyWindows, false
	case "linux":
	default:
		return FamilyLinuxGeneric, true
	}

	ids := append([]string{distroID}, like...)
	for _, id := range ids {
		if containsFold(archLike, id) {
			return FamilyArch, false
		}
	}
	for _, id := range ids {
		if containsFold(debianLike, id) {
			return FamilyDebian, false
		}
	}
	return FamilyLinuxGeneric, distroID == ""
}

func containsFold(list []string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
