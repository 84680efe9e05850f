package tundev

import (
	"syscall"

	"github.com/YaoZengzeng/yutcp/types"
)

var translations = map[syscall.Errno]*types.Error{
	syscall.EEXIST:        types.ErrDuplicateAddress,
	syscall.ENETUNREACH:   types.ErrNoRoute,
	syscall.EINVAL:        types.ErrInvalidEndpointState,
	syscall.EADDRINUSE:    types.ErrPortInUse,
	syscall.EADDRNOTAVAIL: types.ErrBadLocalAddress,
	syscall.ECONNREFUSED:  types.ErrConnectionRefused,
}

// TranslateErrno translates an errno from the syscall package into a
// *types.Error. Errnos with no direct counterpart in this module's error
// space map to ErrBadLinkEndpoint
func TranslateErrno(e syscall.Errno) error {
	if err, ok := translations[e]; ok {
		return err
	}

	return types.ErrBadLinkEndpoint
}
