package main

import (
	"sync"

	"github.com/mrnavastar/uemodman/events"
	"github.com/pterm/pterm"
)

// progressBars draws one pterm bar per file being downloaded.
type progressBars struct {
	mu   sync.Mutex
	bars map[string]*pterm.ProgressbarPrinter
}

func watchProgress(bus *events.Bus) {
	p := &progressBars{bars: map[string]*pterm.ProgressbarPrinter{}}
	onProgress := func(payload any) {
		if prog, ok := payload.(events.Progress); ok {
			p.update(prog.FileName, prog.Percentage)
		}
	}
	bus.Subscribe(events.DownloadFile, onProgress)
	bus.Subscribe(events.DownloadModFile, onProgress)

	bus.Subscribe(events.InstallModFile, func(payload any) {
		if i, ok := payload.(events.Install); ok {
			pterm.Success.Printfln("Installed %s %s (%d files) into %s", i.Name, i.Version, len(i.Entries), i.InstallPath)
		}
	})
	bus.Subscribe(events.FrameworkProcess, func(payload any) {
		f, ok := payload.(events.Framework)
		if !ok {
			return
		}
		switch f.Phase {
		case events.PhaseDownload:
			onProgress(f.Data)
		case events.PhaseComplete:
			pterm.Success.Printfln("UE4SS %v installed", f.Data)
		case events.PhaseUninstalled:
			pterm.Success.Printfln("UE4SS removed (%v)", f.Data)
		case events.PhaseError:
			pterm.Error.Printfln("UE4SS: %v", f.Data)
		}
	})
}

// update moves the bar of name to pct. Unknown sizes (pct -1) draw nothing.
func (p *progressBars) update(name string, pct float64) {
	if pct < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[name]
	if !ok {
		var err error
		bar, err = pterm.DefaultProgressbar.WithTotal(100).WithTitle(name).Start()
		if err != nil {
			return
		}
		p.bars[name] = bar
	}
	if delta := int(pct) - bar.Current; delta > 0 {
		bar.Add(delta)
	}
	if bar.Current >= 100 {
		bar.Stop()
		delete(p.bars, name)
	}
}
