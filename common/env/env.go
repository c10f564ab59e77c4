package env

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

const ApplicationEnvKey = "ENVIRONMENT"

// Environment is the deployment environment the process runs in.
type Environment string

const (
	EnvironmentLocal       Environment = "local"
	EnvironmentLocalDocker Environment = "local-docker"
	EnvironmentTest        Environment = "test"
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

func (e Environment) String() string { return string(e) }

// IsLocal reports whether e is one of the environments that run on a developer machine.
func (e Environment) IsLocal() bool {
	return e == EnvironmentLocal || e == EnvironmentLocalDocker || e == EnvironmentTest
}

// Supported lists every accepted environment name.
func Supported() []string {
	return []string{
		EnvironmentLocal.String(),
		EnvironmentLocalDocker.String(),
		EnvironmentTest.String(),
		EnvironmentDevelopment.String(),
		EnvironmentStaging.String(),
		EnvironmentProduction.String(),
	}
}

func IsEnvironmentValid(environment string) error {
	if slices.Contains(Supported(), environment) {
		return nil
	}
	return fmt.Errorf("invalid environment %q: %s must be set to one of %s",
		environment, ApplicationEnvKey, strings.Join(Supported(), ", "))
}

func FromString(environment string) (Environment, error) {
	if err := IsEnvironmentValid(environment); err != nil {
		return "", err
	}
	return Environment(environment), nil
}

// GetApplicationEnv returns the environment from ENVIRONMENT if it is set to a supported value.
func GetApplicationEnv() (Environment, error) {
	return FromString(os.Getenv(ApplicationEnvKey))
}

// GetApplicationEnvSafe returns the configured environment, or local when unset or invalid.
func GetApplicationEnvSafe() Environment {
	e, err := GetApplicationEnv()
	if err != nil {
		return EnvironmentLocal
	}
	return e
}

func IsLocalApplicationEnv() bool {
	return GetApplicationEnvSafe().IsLocal()
}
