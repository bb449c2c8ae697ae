package tools

import "vilehvh/internal/system"

// InstallHints returns manual install instructions for the host family.
func InstallHints(profile system.Profile) []string {
	switch profile.Family {
	case system.FamilyArch:
		return []string{
			"Install steamcmd from the AUR: yay -S steamcmd",
			"or build it manually: git clone https://aur.archlinux.org/steamcmd.git && cd steamcmd && makepkg -si",
		}
	case system.FamilyDebian:
		hints := []string{"sudo dpkg --add-architecture i386"}
		if profile.IsDistro("ubuntu") {
			hints = append(hints, "sudo add-apt-repository multiverse")
		} else {
			hints = append(hints, "enable the non-free component in /etc/apt/sources.list")
		}
		return append(hints, "sudo apt-get update && sudo apt-get install steamcmd")
	case system.FamilyWindows:
		return []string{
			"Download https://steamcdn-a.akamaihd.net/client/installer/steamcmd.zip and extract it to C:\\steamcmd",
		}
	default:
		return []string{
			"mkdir -p ~/steamcmd && cd ~/steamcmd",
			"curl -sqL https://steamcdn-a.akamaihd.net/client/installer/steamcmd_linux.tar.gz | tar zxvf -",
			"install 32-bit runtime libraries (lib32gcc-s1 or glibc.i686) if steamcmd.sh fails to start",
		}
	}
}
