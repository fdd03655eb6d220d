/*
Package runner drives a conversation against a chatflow Engine through pluggable I/O.

It is the terminal counterpart of the HTTP widget: it starts a session, shows each
turn through an IOHandler and feeds the visitor's choices back until the session
ends or input runs out.

# Key Components

  - Runner: the loop. Choices may be typed as the option number, id or label.
  - TextHandler: interactive CLI usage, with optional markdown rendering.
  - JSONHandler: JSON-Lines for scripts and pipes.

# Usage

	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if _, err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
