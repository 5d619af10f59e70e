package commands

const (
	_etc = "/usr/local/etc/iter8"
	_var = "/usr/local/var/iter8"

	DEFAULT_WORKDIR     = _var
	DEFAULT_CONFIG      = _etc + "/iter8.yaml"
	DEFAULT_CREDENTIALS = _etc + "/.google/credentials.json"
)
