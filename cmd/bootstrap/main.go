// Package main 课程索引引导工具：一次性摄取课程文档目录，支持全量重建。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"course-rag-api/internal/config"
	"course-rag-api/internal/wire"
	"course-rag-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		docsPath = flag.String("docs", "", "课程文档目录（默认取配置中的 rag.docs_path）")
		rebuild  = flag.Bool("rebuild", false, "先删除已有课程索引再全量摄取")
	)
	flag.Parse()

	fmt.Println("Starting course index bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	path := *docsPath
	if path == "" {
		path = cfg.RAG.DocsPath
	}
	if path == "" {
		log.Fatal("no docs path: set -docs or rag.docs_path in config")
	}

	ctx := context.Background()

	ing, cleanup, err := wire.InitializeIngestion(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize ingestion: %v", err)
	}
	defer cleanup()

	if *rebuild {
		fmt.Println("Rebuilding: dropping existing course index...")
		if err := ing.VectorRepo.EnsureCollections(ctx); err != nil {
			log.Fatalf("failed to ensure collections: %v", err)
		}
		catalog, err := ing.VectorRepo.ListCatalog(ctx)
		if err != nil {
			log.Fatalf("failed to list catalog: %v", err)
		}
		for _, c := range catalog {
			if err := ing.VectorRepo.DeleteCourse(ctx, c.Title); err != nil {
				log.Fatalf("failed to delete course %q: %v", c.Title, err)
			}
			fmt.Printf("Deleted course: %s\n", c.Title)
		}
	}

	report, err := ing.Ingestor.IngestDirectory(ctx, path)
	if err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}

	fmt.Printf("Bootstrap completed: %d added, %d skipped, %d failed, %d chunks indexed\n",
		report.CoursesAdded, report.CoursesSkipped, report.CoursesFailed, report.ChunksIndexed)
}
