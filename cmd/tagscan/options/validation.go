package options

import (
	"fmt"
	"net/url"
	"strconv"
)

func Validate(o *Options) []error {
	var errs []error
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}
	if p, err := strconv.Atoi(o.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", o.Port))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("read-timeout must be greater than 0"))
	}
	if o.MaxInflight <= 0 {
		errs = append(errs, fmt.Errorf("max-inflight must be greater than 0"))
	}
	if o.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("event-buffer must be greater than or equal to 0"))
	}
	if (len(o.CertFile) == 0) != (len(o.KeyFile) == 0) {
		errs = append(errs, fmt.Errorf("cert-file and key-file must be set together"))
	}
	if len(o.Mqtt.Broker) > 0 {
		if u, err := url.Parse(o.Mqtt.Broker); err != nil || len(u.Scheme) == 0 || len(u.Host) == 0 {
			errs = append(errs, fmt.Errorf("invalid mqtt-broker %q", o.Mqtt.Broker))
		}
	}
	return errs
}
