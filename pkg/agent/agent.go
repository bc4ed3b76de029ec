package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/periphio/hidcore/internal/configsvc"
	"github.com/periphio/hidcore/internal/inputsvc"
	"github.com/periphio/hidcore/internal/journal"
	"github.com/periphio/hidcore/internal/usbsvc"
	"github.com/periphio/hidcore/internal/usbsvc/sim"
	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config Config
	log    *zap.Logger

	db        *badger.DB
	configSvc *configsvc.Service
	commands  *mailbox.Mailbox[usbsvc.Command]
	usbSvc    *usbsvc.Service
	inputSvc  *inputsvc.Service
	journal   *journal.Journal
	power     *sim.PowerStatus
}

func NewAgent(config Config) (*Agent, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	// TODO: run GC on db
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	deviceConfig, err := configsvc.Read(config.DeviceConfig, defaultDeviceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to load device config: %w", err)
	}
	key, ok := hidreport.KeyCode(deviceConfig.Key)
	if !ok {
		return nil, fmt.Errorf("unknown key: %s", deviceConfig.Key)
	}

	transport, err := newTransportRegistry(logger).New(deviceConfig.Transport.Backend, deviceConfig.Transport.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	button, err := newButtonRegistry(logger).New(deviceConfig.Input.Backend, deviceConfig.Input.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create input: %w", err)
	}
	handler, err := newHandler(logger, deviceConfig.Handler)
	if err != nil {
		return nil, err
	}

	configSvc := configsvc.New(logger.Named("config"))
	commands := mailbox.New[usbsvc.Command]()

	// The sim backend models plugging in through the power interrupt
	// path; the hardware backends have no userspace Vbus source.
	var power *sim.PowerStatus
	if deviceConfig.Transport.Backend == "sim" {
		power = sim.NewPowerStatus()
		usbsvc.NewPowerBridge(logger.Named("power"), power, commands).Arm()
	}

	suspended := atomic.NewBool(false)
	jrnl := journal.New(logger.Named("journal"), db, time.Now)
	state := usbsvc.NewDeviceState(logger.Named("device"), suspended)
	usbSvc := usbsvc.New(logger.Named("usb"), transport, commands, usbsvc.MultiObserver(state, jrnl), handler)
	inputSvc := inputsvc.New(logger.Named("input"), button, usbSvc, commands, suspended, key)

	return &Agent{
		config:    config,
		log:       logger,
		db:        db,
		configSvc: configSvc,
		commands:  commands,
		usbSvc:    usbSvc,
		inputSvc:  inputSvc,
		journal:   jrnl,
		power:     power,
	}, nil
}

func newHandler(logger *zap.Logger, name string) (usbsvc.RequestHandler, error) {
	switch name {
	case "", "log":
		return usbsvc.NewLogHandler(logger.Named("handler")), nil
	case "memory":
		return usbsvc.NewMemoryHandler(logger.Named("handler")), nil
	default:
		return nil, fmt.Errorf("unknown handler: %s", name)
	}
}

func (a *Agent) Close() error {
	return a.db.Close()
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the agent and blocks until the context is cancelled.
// Agent startup will fail if the configuration is not valid.
// In case configuration becomes invalid after the startup, it will remain running with the last valid configuration.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.journal.Start(groupCtx)
	})
	group.Go(func() error {
		return a.usbSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.inputSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.watchDeviceConfig(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-a.usbSvc.Ready():
		}
		if a.power != nil {
			a.power.RaiseDetected()
			return nil
		}
		// There is no vbus interrupt source on Linux: attach implies
		// power, so the device is enabled as soon as the transport runs.
		return a.commands.Send(groupCtx, usbsvc.CommandEnable)
	})

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

// watchDeviceConfig applies live-reloadable parts of the device
// configuration. Backend and handler selection require a restart.
func (a *Agent) watchDeviceConfig(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.configSvc.Ready():
	}
	_, err := configsvc.Register(a.configSvc, a.config.DeviceConfig, defaultDeviceConfig(), func(config DeviceConfig, err error) {
		if err != nil {
			a.log.Warn("Failed to reload device config", zap.Error(err))
			return
		}
		key, ok := hidreport.KeyCode(config.Key)
		if !ok {
			a.log.Warn("Unknown key in device config", zap.String("key", config.Key))
			return
		}
		a.inputSvc.SetKey(key)
	})
	if err != nil {
		return fmt.Errorf("failed to register device config: %w", err)
	}
	return nil
}

func (a *Agent) Journal() *journal.Journal {
	return a.journal
}
