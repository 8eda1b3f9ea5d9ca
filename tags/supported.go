package tags

import (
	"fmt"
	"strconv"
	"strings"
)

// Defaults used by Platforms when describing the host.
const (
	DefaultGlibcMajor = 2
	DefaultGlibcMinor = 35
	DefaultMacOSMajor = 14
)

// Supported returns the tags a CPython interpreter of the given version
// accepts on the given platforms, most preferred first. The order follows
// packaging.tags.sys_tags: interpreter-specific ABI tags, the stable abi3 ABI,
// "none" ABI for the exact interpreter, abi3 for older minors, and finally the
// generic pyXY / pyX tags, platform specific before "any".
//
// pythonVersion is "X.Y" or "X.Y.Z"; the micro component is ignored.
func Supported(pythonVersion string, platforms []string) ([]Tag, error) {
	major, minor, err := splitPythonVersion(pythonVersion)
	if err != nil {
		return nil, err
	}

	var out []Tag
	add := func(interp, abi, plat string) {
		out = append(out, Tag{Interpreter: interp, ABI: abi, Platform: plat})
	}

	interp := "cp" + strconv.Itoa(major) + strconv.Itoa(minor)
	abi := interp
	if major == 3 && minor < 8 {
		abi += "m"
	}
	abi3 := major == 3 && minor >= 2

	for _, p := range platforms {
		add(interp, abi, p)
	}
	if abi3 {
		for _, p := range platforms {
			add(interp, "abi3", p)
		}
	}
	for _, p := range platforms {
		add(interp, "none", p)
	}
	if abi3 {
		for m := minor - 1; m >= 2; m-- {
			older := "cp" + strconv.Itoa(major) + strconv.Itoa(m)
			for _, p := range platforms {
				add(older, "abi3", p)
			}
		}
	}

	generic := pyInterpreterRange(major, minor)
	for _, py := range generic {
		for _, p := range platforms {
			add(py, "none", p)
		}
	}
	add(interp, "none", "any")
	for _, py := range generic {
		add(py, "none", "any")
	}
	return out, nil
}

// pyInterpreterRange yields pyXY, pyX, then pyX(Y-1) down to pyX0.
func pyInterpreterRange(major, minor int) []string {
	maj := strconv.Itoa(major)
	out := []string{"py" + maj + strconv.Itoa(minor), "py" + maj}
	for m := minor - 1; m >= 0; m-- {
		out = append(out, "py"+maj+strconv.Itoa(m))
	}
	return out
}

func splitPythonVersion(v string) (major, minor int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("unable to decode python version %q: want X.Y", v)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, fmt.Errorf("unable to decode python version %q", v)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("unable to decode python version %q", v)
	}
	return major, minor, nil
}

// Platforms maps a Go GOOS/GOARCH pair to wheel platform tags, most specific
// first. Unknown targets yield nil, leaving only the "any" platform.
func Platforms(goos, goarch string) []string {
	switch goos {
	case "linux":
		return LinuxPlatforms(linuxArch(goarch), DefaultGlibcMajor, DefaultGlibcMinor)
	case "darwin":
		return MacOSPlatforms(goarch, DefaultMacOSMajor)
	case "windows":
		switch goarch {
		case "amd64":
			return []string{"win_amd64"}
		case "386":
			return []string{"win32"}
		case "arm64":
			return []string{"win_arm64"}
		}
	}
	return nil
}

func linuxArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	default:
		return goarch
	}
}

// LinuxPlatforms returns manylinux tags for glibc glibcMajor.glibcMinor down
// to the oldest release supported on arch, each legacy alias placed right
// after the PEP 600 tag it names, followed by the plain linux tag.
func LinuxPlatforms(arch string, glibcMajor, glibcMinor int) []string {
	tooOld := 16
	if arch == "x86_64" || arch == "i686" {
		tooOld = 4
	}

	var out []string
	if glibcMajor == 2 {
		for m := glibcMinor; m > tooOld; m-- {
			out = append(out, "manylinux_2_"+strconv.Itoa(m)+"_"+arch)
			switch m {
			case 17:
				out = append(out, "manylinux2014_"+arch)
			case 12:
				out = append(out, "manylinux2010_"+arch)
			case 5:
				out = append(out, "manylinux1_"+arch)
			}
		}
	}
	return append(out, "linux_"+arch)
}

// MacOSPlatforms returns macosx tags from the given major release down to the
// oldest release that supports the architecture.
func MacOSPlatforms(goarch string, major int) []string {
	var formats []string
	oldest := 11
	switch goarch {
	case "arm64":
		formats = []string{"arm64", "universal2"}
	case "amd64":
		formats = []string{"x86_64", "intel", "universal2", "universal"}
		oldest = 10
	default:
		return nil
	}

	var out []string
	for m := major; m >= 11 && m >= oldest; m-- {
		for _, f := range formats {
			out = append(out, "macosx_"+strconv.Itoa(m)+"_0_"+f)
		}
	}
	if oldest == 10 {
		for minor := 16; minor >= 9; minor-- {
			for _, f := range formats {
				out = append(out, "macosx_10_"+strconv.Itoa(minor)+"_"+f)
			}
		}
	}
	return out
}
