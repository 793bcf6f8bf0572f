package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/scene2video/internal/analyzer"
	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/effects"
	"github.com/ivlev/scene2video/internal/engine"
	"github.com/ivlev/scene2video/internal/fingerprint"
	"github.com/ivlev/scene2video/internal/renderer"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/source"
	"github.com/ivlev/scene2video/internal/system"
	"github.com/ivlev/scene2video/internal/video"
)

var buildVersion = "dev"

const usage = `Usage: scene2video <command> [flags]

Commands:
  render       Рендер сцены в видео (mp4) или в папку PNG-кадров
  bake         Таблица значений треков и скоростей по кадрам (YAML)
  fingerprint  Отпечатки ключевых кадров, сравнение с эталоном
  export       Сохранить встроенную сцену в YAML
  list         Список встроенных сцен

Run "scene2video <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "render":
		err = runRender(ctx, args)
	case "bake":
		err = runBake(ctx, args)
	case "fingerprint":
		err = runFingerprint(ctx, args)
	case "export":
		err = runExport(args)
	case "list":
		for _, name := range scene.Names() {
			fmt.Println(name)
		}
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "[-] Неизвестная команда %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

// commonFlags registers the flags shared by render, bake and fingerprint
func commonFlags(fs *flag.FlagSet, cfg *config.Config) (verbose *bool) {
	fs.StringVar(&cfg.Scene, "scene", "", "Встроенная сцена или путь к YAML (по умолчанию: самый свежий файл в input/scenes/)")
	fs.StringVar(&cfg.AssetsDir, "assets", "", "Папка для текстур (по умолчанию: папка файла сцены)")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Ширина")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Высота")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "FPS")
	fs.IntVar(&cfg.Workers, "workers", 0, "Потоки (0 - по числу физических ядер)")
	fs.StringVar(&cfg.Preset, "preset", "", "Пресет формата: 16:9, 9:16, 1:1")
	fs.BoolVar(&cfg.Debug, "debug", false, "Рисовать номер кадра и время")
	fs.StringVar(&cfg.Detector, "detector", cfg.Detector, "Поиск контента для текстур с ?trim: contrast, background")
	fs.IntVar(&cfg.TrimMargin, "trim-margin", cfg.TrimMargin, "Отступ вокруг контента при ?trim (пиксели)")
	return fs.Bool("v", false, "Подробный лог (slog)")
}

func parse(fs *flag.FlagSet, cfg *config.Config, verbose *bool, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		system.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := cfg.ApplyPreset(cfg.Preset); err != nil {
		return err
	}
	if cfg.Scene == "" {
		latest, err := system.FindLatestScene("input/scenes")
		if err != nil {
			return fmt.Errorf("%v. Укажите -scene или положите YAML в input/scenes/", err)
		}
		cfg.Scene = latest
		fmt.Printf("[*] Выбран файл: %s\n", cfg.Scene)
	}
	cfg.BuildVersion = buildVersion
	return cfg.Validate()
}

// loadScene builds a built-in scene or a scene file
func loadScene(cfg *config.Config) (*scene.Scene, error) {
	var (
		spec *scene.File
		err  error
		dir  = cfg.AssetsDir
	)
	if isSceneFile(cfg.Scene) {
		spec, err = scene.Read(cfg.Scene)
		if dir == "" {
			dir = filepath.Dir(cfg.Scene)
		}
	} else {
		spec, err = scene.Lookup(cfg.Scene)
	}
	if err != nil {
		return nil, err
	}

	loader, err := newLoader(cfg, dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	s, err := scene.Build(spec, loader)
	if err != nil {
		return nil, err
	}
	system.Logger().Debug("scene built", "scene", s.Name, "sources", len(s.Sources), "elapsed", time.Since(start))
	return s, nil
}

// newLoader resolves texture references against dir with the configured
// content detector
func newLoader(cfg *config.Config, dir string) (*source.Loader, error) {
	detector, err := analyzer.NewDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	l := source.NewLoader(dir)
	l.Detector = detector
	l.Margin = cfg.TrimMargin
	return l, nil
}

func isSceneFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func runRender(ctx context.Context, args []string) error {
	cfg := config.Default()
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	verbose := commonFlags(fs, cfg)
	fs.StringVar(&cfg.Output, "output", "", "Путь к видео или папка для PNG (если пусто, генерируется автоматически в output/)")
	fs.StringVar(&cfg.AudioPath, "audio", "", "Путь к аудио, обрезается по длине видео (по умолчанию: самый свежий файл в input/audio/)")
	fs.BoolVar(&cfg.NoAudio, "no-audio", false, "Без звука")
	fs.IntVar(&cfg.OutWidth, "out-width", 0, "Ширина итогового видео (ffmpeg scale + pad, 0 - как у рендера)")
	fs.IntVar(&cfg.OutHeight, "out-height", 0, "Высота итогового видео")
	fs.IntVar(&cfg.Quality, "quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	fs.StringVar(&cfg.VideoEncoder, "encoder", "", "Энкодер ffmpeg (по умолчанию: лучший доступный H.264)")
	fs.Float64Var(&cfg.FadeIn, "fade-in", 0, "Появление из черного (сек)")
	fs.Float64Var(&cfg.FadeOut, "fade-out", 0, "Уход в черный (сек)")
	fs.BoolVar(&cfg.Title, "title", false, "Название сцены в первые 2 секунды (drawtext)")
	fs.BoolVar(&cfg.ShowStats, "stats", false, "Отчет о производительности и запись в benchmark.log")
	if err := parse(fs, cfg, verbose, args); err != nil {
		return err
	}

	system.InitResourceLimits()

	if cfg.NoAudio {
		cfg.AudioPath = ""
	} else if cfg.AudioPath == "" {
		if latest, err := system.FindLatestAudio("input/audio"); err == nil {
			cfg.AudioPath = latest
			fmt.Printf("[*] Выбрано аудио: %s\n", cfg.AudioPath)
		}
	}

	s, err := loadScene(cfg)
	if err != nil {
		return err
	}
	r, err := renderer.New(s, renderer.Options{Width: cfg.Width, Height: cfg.Height, Debug: cfg.Debug})
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		os.MkdirAll("output", 0755)
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		cfg.Output = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", s.Name, timestamp))
	}

	sink, err := openSink(ctx, cfg, s)
	if err != nil {
		return err
	}

	project := engine.NewProject(cfg, s, r, sink)
	total := project.FrameCount()

	fmt.Println("--- [PROJECT: SCENE ENGINE] ---")
	fmt.Printf("[*] Сцена: %s | Длительность: %.2fs | Кадров: %d\n", s.Name, s.Duration, total)
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS\n", cfg.Width, cfg.Height, cfg.FPS)
	fmt.Println("-----------------------------")

	step := max(total/10, 1)
	project.Progress = func(done, total int) {
		if done%step == 0 || done == total {
			fmt.Printf("[>] Ready: %d/%d\n", done, total)
		}
	}

	if err := project.Run(ctx); err != nil {
		return fmt.Errorf("ошибка проекта: %w", err)
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", cfg.Output)
	return nil
}

func openSink(ctx context.Context, cfg *config.Config, s *scene.Scene) (video.FrameSink, error) {
	if video.IsPNGTarget(cfg.Output) {
		fmt.Printf("[*] Кадры PNG: %s\n", cfg.Output)
		return video.NewPNGSequence(cfg.Output)
	}
	if dir := filepath.Dir(cfg.Output); dir != "." {
		os.MkdirAll(dir, 0755)
	}

	if cfg.VideoEncoder == "" {
		cfg.VideoEncoder = system.GetBestH264Encoder()
		if cfg.VideoEncoder != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
		}
	}
	if cfg.Quality == 0 {
		cfg.Quality = config.DefaultQuality(cfg.VideoEncoder)
	}

	drawtext := false
	if cfg.Title {
		if drawtext = system.CheckFilterSupport("drawtext"); !drawtext {
			log.Printf("[!] ffmpeg собран без drawtext, название не будет показано")
		}
	}
	if cfg.OutWidth > 0 {
		fmt.Printf("[*] Итоговый размер: %dx%d\n", cfg.OutWidth, cfg.OutHeight)
	}

	return video.Open(ctx, cfg.Output, video.Params{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FPS:       cfg.FPS,
		Encoder:   cfg.VideoEncoder,
		Quality:   cfg.Quality,
		Filter:    outputFilter(cfg, s, drawtext),
		AudioPath: cfg.AudioPath,
	})
}

// outputFilter builds the -vf chain for the encoded stream. Scaling comes
// last so fades and titles are laid out at render size.
func outputFilter(cfg *config.Config, s *scene.Scene, drawtext bool) string {
	chain := effects.Chain{effects.Fade{In: cfg.FadeIn, Out: cfg.FadeOut}}
	if cfg.Title && drawtext {
		chain = append(chain, effects.Title{Text: s.Name, Seconds: 2})
	}
	chain = append(chain, effects.Scale{Width: cfg.OutWidth, Height: cfg.OutHeight})
	return chain.GenerateFilter(effects.Params{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS, Duration: s.Duration})
}

func runBake(ctx context.Context, args []string) error {
	cfg := config.Default()
	fs := flag.NewFlagSet("bake", flag.ExitOnError)
	verbose := commonFlags(fs, cfg)
	fs.StringVar(&cfg.Output, "output", "", "Файл таблицы (если пусто, вывод в stdout)")
	if err := parse(fs, cfg, verbose, args); err != nil {
		return err
	}

	s, err := loadScene(cfg)
	if err != nil {
		return err
	}
	table, err := engine.NewProject(cfg, s, nil, nil).Bake(ctx)
	if err != nil {
		return err
	}
	data, err := table.Encode()
	if err != nil {
		return err
	}
	if cfg.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(cfg.Output, data, 0644); err != nil {
		return err
	}
	fmt.Printf("[+++] Таблица сохранена: %s (%d кадров)\n", cfg.Output, len(table.Samples))
	return nil
}

func runFingerprint(ctx context.Context, args []string) error {
	cfg := config.Default()
	cfg.Width, cfg.Height = 256, 144
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	verbose := commonFlags(fs, cfg)
	fs.IntVar(&cfg.Keyframes, "keyframes", cfg.Keyframes, "Число ключевых кадров")
	fs.IntVar(&cfg.Tolerance, "tolerance", cfg.Tolerance, "Допустимое расстояние между отпечатками")
	fs.StringVar(&cfg.Reference, "ref", "", "Файл эталонных отпечатков (YAML)")
	fs.BoolVar(&cfg.WriteRef, "write", false, "Записать эталон вместо сравнения")
	if err := parse(fs, cfg, verbose, args); err != nil {
		return err
	}

	s, err := loadScene(cfg)
	if err != nil {
		return err
	}
	r, err := renderer.New(s, renderer.Options{Width: cfg.Width, Height: cfg.Height, Debug: cfg.Debug})
	if err != nil {
		return err
	}
	hashes, err := engine.NewProject(cfg, s, r, nil).Fingerprints(ctx, cfg.Keyframes)
	if err != nil {
		return err
	}

	got := &fingerprint.File{Scene: s.Name, Width: cfg.Width, Height: cfg.Height, Hashes: hashes}
	switch {
	case cfg.Reference == "":
		for i, h := range hashes {
			fmt.Printf("%3d %s\n", i, h)
		}
		return nil
	case cfg.WriteRef:
		if err := fingerprint.Write(got, cfg.Reference); err != nil {
			return err
		}
		fmt.Printf("[+++] Эталон сохранен: %s\n", cfg.Reference)
		return nil
	}

	ref, err := fingerprint.Read(cfg.Reference)
	if err != nil {
		return err
	}
	if ref.Width != got.Width || ref.Height != got.Height {
		log.Printf("[!] Эталон снят в %dx%d, текущий рендер %dx%d", ref.Width, ref.Height, got.Width, got.Height)
	}
	if err := fingerprint.Compare(ref.Hashes, got.Hashes, cfg.Tolerance); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	fmt.Printf("[+++] %s: %d кадров совпадают с эталоном\n", s.Name, len(hashes))
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	name := fs.String("scene", "", "Встроенная сцена")
	output := fs.String("output", "", "Файл YAML (если пусто, вывод в stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	spec, err := scene.Lookup(*name)
	if err != nil {
		return err
	}
	if *output == "" {
		return scene.Encode(os.Stdout, spec)
	}
	if err := scene.Write(spec, *output); err != nil {
		return err
	}
	fmt.Printf("[+++] Сцена сохранена: %s\n", *output)
	return nil
}
