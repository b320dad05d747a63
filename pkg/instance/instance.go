package instance

import "github.com/iamnithishraja/klinic-sub000/pkg/env"

// ID returns the identifier of this process for logs and lock ownership.
// DYNO is set by the platform router, HOSTNAME inside containers.
func ID() string {
	if id := env.First(env.Prefix+"INSTANCE_ID", "DYNO", "HOSTNAME"); id != "" {
		return id
	}
	return "local"
}
