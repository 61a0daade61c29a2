// Package mountopts translates OCI mount option strings into kernel mount
// flag, propagation flag, and data triples.
package mountopts

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Options is the parsed form of an OCI mount's option list.
type Options struct {
	MountFlags       uintptr
	PropagationFlags uintptr
	Data             string
}

// UnsupportedOptionError is returned for options that are recognised but not
// implemented (lazytime, nolazytime, tmpcopyup). These must fail loudly
// rather than silently fall into the data string.
type UnsupportedOptionError struct {
	Option string
}

func (e *UnsupportedOptionError) Error() string {
	return fmt.Sprintf("mount option %q is recognised but not supported", e.Option)
}

// setClear maps an option token to the bitset it belongs to and whether it
// sets (true) or clears (false) the flag.
type setClear struct {
	flag  uintptr
	set   bool
	mount bool // true: mount_flags: false: propagation_flags
}

var table = map[string]setClear{
	"acl":           {unix.MS_POSIXACL, true, true},
	"noacl":         {unix.MS_POSIXACL, false, true},
	"async":         {unix.MS_SYNCHRONOUS, false, true},
	"sync":          {unix.MS_SYNCHRONOUS, true, true},
	"atime":         {unix.MS_NOATIME, false, true},
	"noatime":       {unix.MS_NOATIME, true, true},
	"bind":          {unix.MS_BIND, true, true},
	"dev":           {unix.MS_NODEV, false, true},
	"nodev":         {unix.MS_NODEV, true, true},
	"diratime":      {unix.MS_NODIRATIME, false, true},
	"nodiratime":    {unix.MS_NODIRATIME, true, true},
	"dirsync":       {unix.MS_DIRSYNC, true, true},
	"exec":          {unix.MS_NOEXEC, false, true},
	"noexec":        {unix.MS_NOEXEC, true, true},
	"iversion":      {unix.MS_I_VERSION, true, true},
	"noiversion":    {unix.MS_I_VERSION, false, true},
	"loud":          {unix.MS_SILENT, false, true},
	"silent":        {unix.MS_SILENT, true, true},
	"mand":          {unix.MS_MANDLOCK, true, true},
	"nomand":        {unix.MS_MANDLOCK, false, true},
	"norelatime":    {unix.MS_RELATIME, false, true},
	"relatime":      {unix.MS_RELATIME, true, true},
	"nostrictatime": {unix.MS_STRICTATIME, false, true},
	"strictatime":   {unix.MS_STRICTATIME, true, true},
	"nosuid":        {unix.MS_NOSUID, true, true},
	"suid":          {unix.MS_NOSUID, false, true},
	"remount":       {unix.MS_REMOUNT, true, true},
	"ro":            {unix.MS_RDONLY, true, true},
	"rw":            {unix.MS_RDONLY, false, true},

	"private":    {unix.MS_PRIVATE, true, false},
	"shared":     {unix.MS_SHARED, true, false},
	"slave":      {unix.MS_SLAVE, true, false},
	"unbindable": {unix.MS_UNBINDABLE, true, false},
}

// recursive propagation tokens additionally OR in MS_REC.
var recursivePropagation = map[string]uintptr{
	"rprivate":    unix.MS_PRIVATE,
	"rshared":     unix.MS_SHARED,
	"rslave":      unix.MS_SLAVE,
	"runbindable": unix.MS_UNBINDABLE,
}

var unsupported = map[string]struct{}{
	"lazytime":   {},
	"nolazytime": {},
	"tmpcopyup":  {},
}

// Parse translates the ordered option token list into an Options triple.
// Tokens are applied in order, so a later token overrides an earlier one.
// "defaults" is a no-op. "rbind" is equivalent to "bind,rec". Unrecognised
// tokens are appended, in order, to the comma-joined Data string.
func Parse(tokens []string) (Options, error) {
	var opts Options
	var data []string

	for _, tok := range tokens {
		if tok == "defaults" {
			continue
		}
		if tok == "rbind" {
			opts.MountFlags |= unix.MS_BIND | unix.MS_REC
			continue
		}

		if flag, ok := recursivePropagation[tok]; ok {
			opts.PropagationFlags |= flag | unix.MS_REC
			continue
		}

		if _, ok := unsupported[tok]; ok {
			return Options{}, &UnsupportedOptionError{Option: tok}
		}

		if sc, ok := table[tok]; ok {
			if sc.mount {
				if sc.set {
					opts.MountFlags |= sc.flag
				} else {
					opts.MountFlags &^= sc.flag
				}
			} else {
				if sc.set {
					opts.PropagationFlags |= sc.flag
				} else {
					opts.PropagationFlags &^= sc.flag
				}
			}
			continue
		}

		data = append(data, tok)
	}

	opts.Data = strings.Join(data, ",")
	return opts, nil
}
