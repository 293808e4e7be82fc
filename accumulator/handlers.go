package accumulator

import (
	"context"

	"github.com/weegigs/wee-ledger-go/we"
)

func setIncrement() we.CommandHandler[Accumulation] {
	var handler we.CommandHandlerFunction[Accumulation, SetIncrement] = func(ctx context.Context, cmd SetIncrement, state we.Entity[Accumulation], publish we.EventPublisher) error {
		if _, err := we.Signed(ctx); err != nil {
			return err
		}

		_, err := put(ctx, publish, state, state.State.WithIncrement(cmd.Increment))
		return err
	}

	return handler
}

func accumulate(notifier we.Notifier) we.CommandHandler[Accumulation] {
	var handler we.CommandHandlerFunction[Accumulation, Accumulate] = func(ctx context.Context, _ Accumulate, state we.Entity[Accumulation], publish we.EventPublisher) error {
		who, err := we.Signed(ctx)
		if err != nil {
			return err
		}

		next, err := state.State.Accumulate()
		if err != nil {
			return err
		}

		revision, err := put(ctx, publish, state, next)
		if err != nil {
			return err
		}

		we.Deposit(ctx, notifier, state.Aggregate, revision, Accumulated{NewCount: next.CurrentCount, Who: who})

		return nil
	}

	return handler
}

func CommandHandlers(notifier we.Notifier) we.CommandHandlers[Accumulation] {
	return we.CommandHandlers[Accumulation]{
		we.CommandNameOf(SetIncrement{}): setIncrement(),
		we.CommandNameOf(Accumulate{}):   accumulate(notifier),
	}
}
