package config

import "fmt"

type Config struct {
	RunningEnvironment RunningEnvironment
	DebugMode          bool
	Server             ServerConfig
	APIs               APIsConfig
	Credentials        CredentialsConfig
	Client             ClientConfig
	Monitoring         MonitoringConfig
}

func (c *Config) Validate() error {
	if c.RunningEnvironment != Development && c.RunningEnvironment != Production {
		return fmt.Errorf("unknown running environment %q", c.RunningEnvironment)
	}
	err := c.APIs.Validate()
	if err != nil {
		return err
	}
	err = c.Credentials.Validate()
	if err != nil {
		return err
	}
	err = c.Client.Validate()
	if err != nil {
		return err
	}
	if c.RunningEnvironment == Production && !c.Credentials.TokenEncryption.Enabled {
		return fmt.Errorf("token encryption has to be enabled in production")
	}
	return nil
}
