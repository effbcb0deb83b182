package egress

import (
	"context"
	"sync/atomic"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
	"github.com/squadracorsepolito/dbcpool/internal"
	"github.com/squadracorsepolito/dbcpool/message"
	"github.com/squadracorsepolito/dbcpool/worker"
	"go.opentelemetry.io/otel/attribute"
)

type QuestDBConfig struct {
	*worker.PoolConfig

	Address       string
	AutoFlushRows int
	RetryTimeout  time.Duration
}

func NewDefaultQuestDBConfig() *QuestDBConfig {
	return &QuestDBConfig{
		PoolConfig:    worker.DefaultPoolConfig(),
		Address:       "localhost:9000",
		AutoFlushRows: 75_000,
		RetryTimeout:  time.Second,
	}
}

// QuestDB stores the decoded signal changes over the InfluxDB line protocol,
// one table per value class.
type QuestDB struct {
	*stage[*message.CANSignalBatch, *QuestDBConfig, questDBWorker, *qdb.LineSenderPool, *questDBWorker]

	senderPool *qdb.LineSenderPool
}

func NewQuestDB(cfg *QuestDBConfig) *QuestDB {
	return &QuestDB{
		stage: newStage[*message.CANSignalBatch, *QuestDBConfig, questDBWorker, *qdb.LineSenderPool]("questdb", cfg),
	}
}

func (e *QuestDB) Init(ctx context.Context) error {
	senderPool, err := qdb.PoolFromOptions(
		qdb.WithAddress(e.cfg.Address),
		qdb.WithHttp(),
		qdb.WithAutoFlushRows(e.cfg.AutoFlushRows),
		qdb.WithRetryTimeout(e.cfg.RetryTimeout),
	)
	if err != nil {
		return err
	}

	e.senderPool = senderPool

	return e.init(ctx, senderPool)
}

func (e *QuestDB) Run(ctx context.Context) {
	e.run(ctx)
}

func (e *QuestDB) Stop() {
	e.close()

	if err := e.senderPool.Close(context.Background()); err != nil {
		e.tel.LogError("failed to close sender pool", err)
	}
}

type questDBWorker struct {
	tel *internal.Telemetry

	sender qdb.LineSender

	deliveredRows atomic.Int64
}

func (w *questDBWorker) Init(ctx context.Context, senderPool *qdb.LineSenderPool) error {
	sender, err := senderPool.Sender(ctx)
	if err != nil {
		return err
	}

	w.sender = sender

	w.tel.NewCounter("delivered_rows", w.deliveredRows.Load)

	return nil
}

func (w *questDBWorker) Deliver(ctx context.Context, data *message.CANSignalBatch) error {
	defer message.PutCANSignalBatch(data)

	ctx, span := w.tel.NewTrace(data.LoadSpanContext(ctx), "insert CAN signals")
	defer span.End()

	span.SetAttributes(attribute.Int("signal_count", data.SignalCount))

	for i := range data.SignalCount {
		sig := data.Signals[i]

		row := w.sender.Table(sig.Table.String()).
			Symbol("message", sig.Message).
			Symbol("name", sig.Name).
			Int64Column("can_id", sig.CANID).
			Int64Column("raw_value", sig.RawValue)

		switch sig.Table {
		case message.CANSignalTableFlag:
			row = row.BoolColumn("flag_value", sig.ValueFlag)
		case message.CANSignalTableInt:
			row = row.Int64Column("integer_value", sig.ValueInt)
		case message.CANSignalTableFloat:
			row = row.Float64Column("decimal_value", sig.ValueFloat)
		case message.CANSignalTableEnum:
			row = row.StringColumn("enum_value", sig.ValueEnum)
		}

		if sig.Unit != "" {
			row = row.StringColumn("unit", sig.Unit)
		}

		if err := row.At(ctx, signalTime(sig, data.Timestamp)); err != nil {
			return err
		}
	}

	w.deliveredRows.Add(int64(data.SignalCount))

	return nil
}

func (w *questDBWorker) Stop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return w.sender.Close(context.Background())
	default:
		return w.sender.Close(ctx)
	}
}

func (w *questDBWorker) SetTelemetry(tel *internal.Telemetry) {
	w.tel = tel
}

// signalTime prefers the frame timestamp over the batch one.
func signalTime(sig message.CANSignal, batchTime time.Time) time.Time {
	if sig.Stamp == 0 {
		return batchTime
	}
	return time.UnixMicro(int64(sig.Stamp))
}
