// Package observe implements the change stream: committed mutations are
// published as ChangeEvents to every subscription whose filter matches.
//
// Each subscription owns an unbounded FIFO queue drained by its own
// goroutine, so Publish never blocks and a slow consumer never delays
// another. Events reach a subscriber in publish order. There is no
// replay: a subscription sees only events published after it was
// created.
package observe
