package tx

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/waybeam/crsfpwm/pkg/crsf"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Tx    *Transmitter
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool
	target     = "127.0.0.1:9000"
	address    = "0xc8"

	commands = []*ishell.Cmd{
		&SetCmd,
		&CenterCmd,
		&SendCmd,
		&SplitCmd,
		&StreamCmd,
		&CorruptCmd,
		&NoiseCmd,
		&AddrCmd,
		&ShowCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&target, "target", target, "Bridge UDP address.")
	flag.StringVar(&address, "addr", address, "CRSF destination address of sent frames.")
}

// New creates a new shell.
func New(t *Transmitter) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Tx:    t,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) updatePrompt() {
	s.Shell.SetPrompt(fmt.Sprintf("[0x%02x] > ", s.Tx.Address()))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Tx.StopStream()
	if len(args) > 0 {
		for _, line := range splitCommands(args) {
			if err := s.Shell.Process(line...); err != nil {
				log.Fatalln(err)
			}
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// splitCommands splits args on ";" so one invocation can run
// several commands.
func splitCommands(args []string) (lines [][]string) {
	var cur []string
	for _, arg := range args {
		if arg == ";" {
			if len(cur) > 0 {
				lines = append(lines, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, arg)
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return
}

// ParseAddress parses a CRSF address in decimal or 0x hex.
func ParseAddress(str string) (byte, error) {
	v, err := strconv.ParseUint(str, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %v", str, err)
	}
	return byte(v), nil
}

func intArg(c *ishell.Context, n int, def int) (int, error) {
	if len(c.Args) <= n {
		return def, nil
	}
	return strconv.Atoi(c.Args[n])
}

var (
	// SetCmd sets channel values.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "CH US [CH US ...]",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 || len(c.Args)%2 != 0 {
				c.Err(fmt.Errorf("expect CH US pairs"))
				return
			}
			tx := ShellFrom(c).Tx
			for n := 0; n < len(c.Args); n += 2 {
				ch, err := strconv.Atoi(c.Args[n])
				if err != nil {
					c.Err(err)
					return
				}
				us, err := strconv.Atoi(c.Args[n+1])
				if err != nil {
					c.Err(err)
					return
				}
				if err = tx.SetMicros(ch, us); err != nil {
					c.Err(err)
					return
				}
			}
		},
	}

	// CenterCmd centers all channels.
	CenterCmd = ishell.Cmd{
		Name: "center",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Tx.Center()
		},
	}

	// SendCmd sends frames with current channel values.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"x"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			count, err := intArg(c, 0, 1)
			if err == nil {
				err = ShellFrom(c).Tx.Send(count)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// SplitCmd sends one frame across several datagrams.
	SplitCmd = ishell.Cmd{
		Name: "split",
		Help: "SIZE",
		Func: func(c *ishell.Context) {
			size, err := intArg(c, 0, 1)
			if err == nil {
				err = ShellFrom(c).Tx.SendSplit(size)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// StreamCmd starts or stops periodic sending.
	StreamCmd = ishell.Cmd{
		Name: "stream",
		Help: "HZ|stop",
		Func: func(c *ishell.Context) {
			tx := ShellFrom(c).Tx
			if len(c.Args) == 0 || c.Args[0] == "stop" {
				if !tx.StopStream() {
					c.Println("not streaming")
				}
				return
			}
			hz, err := strconv.ParseFloat(c.Args[0], 64)
			if err != nil || hz <= 0 {
				c.Err(fmt.Errorf("invalid rate %q", c.Args[0]))
				return
			}
			tx.StartStream(time.Duration(float64(time.Second) / hz))
		},
	}

	// CorruptCmd sends a frame with one payload bit flipped.
	CorruptCmd = ishell.Cmd{
		Name: "corrupt",
		Help: "[BIT]",
		Func: func(c *ishell.Context) {
			bit, err := intArg(c, 0, -1)
			if err == nil {
				err = ShellFrom(c).Tx.SendCorrupt(bit)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// NoiseCmd sends random bytes.
	NoiseCmd = ishell.Cmd{
		Name: "noise",
		Help: "[BYTES]",
		Func: func(c *ishell.Context) {
			n, err := intArg(c, 0, crsf.MaxFrameSize)
			if err == nil {
				err = ShellFrom(c).Tx.SendNoise(n)
			}
			if err != nil {
				c.Err(err)
			}
		},
	}

	// AddrCmd changes the destination address of sent frames.
	AddrCmd = ishell.Cmd{
		Name: "addr",
		Help: "ADDRESS",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				c.Printf("0x%02x\n", s.Tx.Address())
				return
			}
			addr, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s.Tx.SetAddress(addr)
			s.updatePrompt()
		},
	}

	// ShowCmd prints current channel values.
	ShowCmd = ishell.Cmd{
		Name:    "show",
		Aliases: []string{"ls"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			chs := s.Tx.Channels()
			if s.OutputJSON {
				out, err := json.Marshal(map[string]interface{}{
					"address":  s.Tx.Address(),
					"channels": chs,
					"sent":     s.Tx.Sent(),
				})
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			strs := make([]string, len(chs))
			for n, us := range chs {
				strs[n] = fmt.Sprintf("%d:%d", n+1, us)
			}
			c.Printf("addr 0x%02x sent %d\n%s\n", s.Tx.Address(), s.Tx.Sent(), strings.Join(strs, " "))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	addr, err := ParseAddress(address)
	if err != nil {
		log.Fatalln(err)
	}
	conn, err := net.Dial("udp", target)
	if err != nil {
		log.Fatalf("dial %s failed: %v", target, err)
	}
	defer conn.Close()
	New(NewTransmitter(conn, addr)).Run(flag.Args()...)
}
