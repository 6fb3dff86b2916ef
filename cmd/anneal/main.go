// Command anneal trains the built-in demo model on synthetic data. It
// exists to exercise the training loop from the command line; library users
// embed the train package directly.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anneal-ml/anneal/internal/checkpoint"
	"github.com/anneal-ml/anneal/train"
)

func main() {
	pflag.String("method", train.MethodSGD, "training method (sgd, nag, global, lbfgs, bfgs, cg, sample, layerwise)")
	pflag.Int("validate", 3, "iterations between validation checkpoints")
	pflag.Float64("min-improvement", 0, "minimum relative improvement to reset patience")
	pflag.Int("num-updates", 1000, "total iteration budget")
	pflag.Int("patience", 100, "stagnant iterations tolerated before stopping")
	pflag.Float64("momentum", 0, "Nesterov momentum; 0 selects plain SGD")
	pflag.Float64("max-gradient-norm", 1e5, "L2 norm bound per gradient tensor")
	pflag.Float64("learning-rate", 0.1, "SGD step size")
	pflag.Float64("learning-rate-decay", 0.1, "annealing fraction on stagnation")
	pflag.Bool("clip-params-at-zero", false, "clamp sign-crossing parameter elements to zero")
	pflag.String("global-method", "lbfgs", "external minimizer for the global method")
	pflag.Int64("seed", 42, "random seed for data generation and sampling")
	pflag.Int("dim", 8, "demo model input dimension")
	pflag.Int("hidden", 4, "demo model hidden layer size")
	pflag.Int("samples", 400, "demo dataset size")
	pflag.Int("batch-size", 20, "demo minibatch size")
	pflag.String("config", "", "optional YAML config file overriding flag defaults")
	pflag.String("save", "", "write the final parameter snapshot to this file")
	pflag.String("checkpoint-dir", "", "directory for per-layer checkpoints of the layerwise method")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatalf("binding flags: %v", err)
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("reading config %s: %v", path, err)
		}
	}

	cfg := train.Config{
		ValidationFrequency: viper.GetInt("validate"),
		MinImprovement:      viper.GetFloat64("min-improvement"),
		Iterations:          viper.GetInt("num-updates"),
		Patience:            viper.GetInt("patience"),
		Momentum:            viper.GetFloat64("momentum"),
		MaxGradientNorm:     viper.GetFloat64("max-gradient-norm"),
		LearningRate:        viper.GetFloat64("learning-rate"),
		LearningRateDecay:   viper.GetFloat64("learning-rate-decay"),
		ClipParamsAtZero:    viper.GetBool("clip-params-at-zero"),
		GlobalMethod:        viper.GetString("global-method"),
		Seed:                viper.GetInt64("seed"),
	}

	method := viper.GetString("method")
	var trainer train.Trainer
	var err error
	if method == train.MethodLayerwise && viper.GetString("checkpoint-dir") != "" {
		trainer, err = train.NewLayerwise(cfg, train.FileCheckpointSaver(viper.GetString("checkpoint-dir")))
	} else {
		trainer, err = train.New(method, cfg)
	}
	if err != nil {
		log.Fatalf("building trainer: %v", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	m := newMLP(viper.GetInt("dim"), viper.GetInt("hidden"), rng)
	trainSet, validSet := syntheticData(rng, viper.GetInt("dim"), viper.GetInt("samples"), viper.GetInt("batch-size"))

	result, err := trainer.Train(shutdownContext(), m, trainSet, validSet)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Infof("finished: status=%s iterations=%d best J=%.6f at iteration %d",
		result.Status, result.Iterations, result.BestCost, result.BestIteration+1)

	if path := viper.GetString("save"); path != "" {
		err := checkpoint.Save(path, m, checkpoint.Training{
			Method:    method,
			Iteration: result.BestIteration,
			BestCost:  result.BestCost,
		})
		if err != nil {
			log.Fatalf("saving snapshot: %v", err)
		}
		log.Infof("saved snapshot to %s", path)
	}
}

// shutdownContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted run still restores the best validated parameters.
func shutdownContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
