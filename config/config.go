/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5400"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Port string `json:"port" envconfig:"PAYRUN_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYRUN_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PAYRUN_REDIS_DNS"`
}

type QueueConfig struct {
	WebhookQueue     string `json:"webhook_queue" envconfig:"PAYRUN_QUEUE_WEBHOOK"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"PAYRUN_QUEUE_MAX_RETRY_ATTEMPTS"`
}

// SchedulerConfig holds the knobs of the job loop. Mode is "cron" for
// interval timers or "loop" for the diagnostic full-table sweep.
type SchedulerConfig struct {
	Mode            string `json:"mode" envconfig:"PAYRUN_SCHEDULER_MODE"`
	MaxConcurrent   int    `json:"max_concurrent_services" envconfig:"PAYRUN_SCHEDULER_MAX_CONCURRENT"`
	MaxRetries      int    `json:"max_retries" envconfig:"PAYRUN_SCHEDULER_MAX_RETRIES"`
	RetryBackoffSec int    `json:"retry_backoff_sec" envconfig:"PAYRUN_SCHEDULER_RETRY_BACKOFF_SEC"`
	CodeDelaySec    int    `json:"code_delay_sec" envconfig:"PAYRUN_SCHEDULER_CODE_DELAY_SEC"`
	ServiceDelaySec int    `json:"service_delay_sec" envconfig:"PAYRUN_SCHEDULER_SERVICE_DELAY_SEC"`
	LoopIntervalSec int    `json:"loop_interval_sec" envconfig:"PAYRUN_SCHEDULER_LOOP_INTERVAL_SEC"`
}

// ServiceConfig is the persisted part of a service descriptor. The full
// descriptor lives in the registry at runtime.
type ServiceConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"interval_minutes"`
	Priority        int    `json:"priority"`
	Subtype         string `json:"subtype,omitempty"`
}

// PortalConfig points at the automation agent that performs the actual
// provider-portal work on behalf of the engine.
type PortalConfig struct {
	AgentUrl   string            `json:"agent_url" envconfig:"PAYRUN_PORTAL_AGENT_URL"`
	TimeoutSec int               `json:"timeout_sec" envconfig:"PAYRUN_PORTAL_TIMEOUT_SEC"`
	Headers    map[string]string `json:"headers"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string                   `json:"project_name" envconfig:"PAYRUN_PROJECT_NAME"`
	Server       ServerConfig             `json:"server"`
	DataSource   DataSourceConfig         `json:"data_source"`
	Redis        RedisConfig              `json:"redis"`
	Queue        QueueConfig              `json:"queue"`
	Scheduler    SchedulerConfig          `json:"scheduler"`
	Portal       PortalConfig             `json:"portal"`
	Services     map[string]ServiceConfig `json:"services"`
	Notification Notification             `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payrun", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payrun.json with your config")
	}
	return c, nil
}

// DefaultServices is the production service table of the automation tool:
// name -> schedule and priority, matching the portal flows it drives.
func DefaultServices() map[string]ServiceConfig {
	return map[string]ServiceConfig{
		"tra_cuu_ftth":           {Enabled: true, IntervalMinutes: 25, Priority: 1},
		"nap_tien_da_mang":       {Enabled: true, IntervalMinutes: 15, Priority: 2, Subtype: "prepaid"},
		"nap_tien_viettel":       {Enabled: true, IntervalMinutes: 15, Priority: 3},
		"thanh_toan_tv_internet": {Enabled: true, IntervalMinutes: 45, Priority: 4},
		"gach_dien_evn":          {Enabled: true, IntervalMinutes: 60, Priority: 5},
		"tra_cuu_no_tra_sau":     {Enabled: true, IntervalMinutes: 60, Priority: 6},
	}
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Payrun Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "payrun:webhook"
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 3
	}

	if cnf.Scheduler.Mode == "" {
		cnf.Scheduler.Mode = "cron"
	}
	if cnf.Scheduler.Mode != "cron" && cnf.Scheduler.Mode != "loop" {
		return errors.New("scheduler mode must be either cron or loop")
	}
	if cnf.Scheduler.MaxConcurrent <= 0 {
		cnf.Scheduler.MaxConcurrent = 2
	}
	if cnf.Scheduler.MaxRetries <= 0 {
		cnf.Scheduler.MaxRetries = 1
	}
	if cnf.Scheduler.RetryBackoffSec <= 0 {
		cnf.Scheduler.RetryBackoffSec = 1
	}
	if cnf.Scheduler.CodeDelaySec <= 0 {
		cnf.Scheduler.CodeDelaySec = 1
	}
	if cnf.Scheduler.ServiceDelaySec <= 0 {
		cnf.Scheduler.ServiceDelaySec = 2
	}
	if cnf.Scheduler.LoopIntervalSec <= 0 {
		cnf.Scheduler.LoopIntervalSec = 10
	}

	if cnf.Portal.TimeoutSec <= 0 {
		cnf.Portal.TimeoutSec = 120
	}

	if len(cnf.Services) == 0 {
		log.Println("Warning: No services configured. Using the default service table.")
		cnf.Services = DefaultServices()
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
